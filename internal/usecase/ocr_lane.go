package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// OCRLane starts and stops engine-owned OCR sessions to follow the scene's OCR
// mode. Sessions started by anyone else are never touched.
type OCRLane struct {
	ocr     domain.OCRController
	session *AutomationSession
	logger  *zap.Logger
}

// NewOCRLane creates the OCR lane over a shared session.
func NewOCRLane(ocr domain.OCRController, session *AutomationSession, logger *zap.Logger) *OCRLane {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OCRLane{ocr: ocr, session: session, logger: logger}
}

// Tick applies the scene's OCR mode. profile may be nil.
func (l *OCRLane) Tick(ctx context.Context, scene domain.Scene, profile *domain.LaunchProfile) {
	mode := domain.OCRNone
	if profile != nil {
		mode = profile.OCRMode
	}
	log := l.logger.With(zap.String("scene", scene.Name), zap.String("ocr_mode", string(mode)))

	state := l.ocr.State()
	sceneChanged := l.session.LastOCRSceneID != "" && l.session.LastOCRSceneID != scene.ID
	l.session.LastOCRSceneID = scene.ID

	if sceneChanged && state.OwnedByEngine() && state.Mode == domain.OCRAuto {
		log.Info("scene changed, stopping auto OCR", zap.String("previous_scene", state.SceneID))
		l.stop(ctx, log)
		state = l.ocr.State()
	}

	switch mode {
	case domain.OCRAuto:
		if state.Running && !state.OwnedByEngine() {
			log.Debug("OCR started by user, leaving it alone", zap.String("source", state.Source))
			return
		}
		if state.OwnedByEngine() && state.Mode == domain.OCRAuto && l.session.ActiveOCRSceneID == scene.ID {
			return
		}
		if state.OwnedByEngine() {
			l.stop(ctx, log)
		}
		err := l.ocr.Start(ctx, domain.OCRStartRequest{
			Source:  domain.AutoLauncherSource,
			Mode:    domain.OCRAuto,
			SceneID: scene.ID,
		})
		if err != nil {
			log.Warn("failed to start OCR, will retry", zap.Error(err))
			return
		}
		l.session.ActiveOCRSceneID = scene.ID
		log.Info("started auto OCR")

	default:
		// Manual OCR is only ever started by the user.
		if state.OwnedByEngine() {
			l.stop(ctx, log)
		}
	}
}

// Teardown stops the engine-owned session, if any.
func (l *OCRLane) Teardown(ctx context.Context) {
	if l.ocr.State().OwnedByEngine() {
		l.stop(ctx, l.logger)
	}
	l.session.LastOCRSceneID = ""
}

func (l *OCRLane) stop(ctx context.Context, log *zap.Logger) {
	stopped, err := l.ocr.Stop(ctx, domain.AutoLauncherSource)
	if err != nil {
		log.Warn("failed to stop OCR", zap.Error(err))
		return
	}
	if stopped {
		log.Info("stopped auto OCR")
	}
	l.session.ActiveOCRSceneID = ""
}
