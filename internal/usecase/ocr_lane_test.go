package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

func ocrProfile(sceneID string, mode domain.OCRMode) *domain.LaunchProfile {
	return &domain.LaunchProfile{SceneID: sceneID, TextHookMode: domain.TextHookNone, OCRMode: mode}
}

func newOCRLaneForTest(ocr *mockOCR) (*OCRLane, *AutomationSession) {
	session := NewAutomationSession(5 * time.Second)
	return NewOCRLane(ocr, session, nil), session
}

func TestOCRLane_LeavesUserSessionAlone(t *testing.T) {
	sceneA := domain.Scene{ID: "A", Name: "Alpha"}
	sceneB := domain.Scene{ID: "B", Name: "Beta"}

	for _, mode := range []domain.OCRMode{domain.OCRNone, domain.OCRManual, domain.OCRAuto} {
		for _, userMode := range []domain.OCRMode{domain.OCRManual, domain.OCRAuto} {
			t.Run(string(mode)+"/user-"+string(userMode), func(t *testing.T) {
				ocr := &mockOCR{state: domain.OCRState{Running: true, Source: "user", Mode: userMode, SceneID: "A", PID: 5}}
				lane, _ := newOCRLaneForTest(ocr)
				ctx := context.Background()

				lane.Tick(ctx, sceneA, ocrProfile("A", mode))
				lane.Tick(ctx, sceneB, ocrProfile("B", mode))
				lane.Tick(ctx, sceneB, nil)
				lane.Teardown(ctx)

				assert.Empty(t, ocr.starts)
				assert.Empty(t, ocr.stops)
				assert.True(t, ocr.state.Running)
				assert.Equal(t, "user", ocr.state.Source)
			})
		}
	}
}

func TestOCRLane_AutoStartsOnce(t *testing.T) {
	ocr := &mockOCR{}
	lane, session := newOCRLaneForTest(ocr)
	scene := domain.Scene{ID: "A", Name: "Alpha"}
	ctx := context.Background()

	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))
	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))

	require.Len(t, ocr.starts, 1)
	assert.Equal(t, domain.OCRStartRequest{Source: domain.AutoLauncherSource, Mode: domain.OCRAuto, SceneID: "A"}, ocr.starts[0])
	assert.Empty(t, ocr.stops)
	assert.Equal(t, "A", session.ActiveOCRSceneID)
}

func TestOCRLane_UnrecordedOwnedSessionRestarts(t *testing.T) {
	ocr := &mockOCR{}
	lane, session := newOCRLaneForTest(ocr)
	scene := domain.Scene{ID: "A", Name: "Alpha"}
	ctx := context.Background()

	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))
	session.Reset(5 * time.Second)
	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))

	require.Len(t, ocr.starts, 2)
	assert.Equal(t, []string{domain.AutoLauncherSource}, ocr.stops)
	assert.Equal(t, "A", session.ActiveOCRSceneID)
	assert.True(t, ocr.state.OwnedByEngine())
}

func TestOCRLane_SceneChangeRestartsAuto(t *testing.T) {
	ocr := &mockOCR{}
	lane, session := newOCRLaneForTest(ocr)
	ctx := context.Background()

	lane.Tick(ctx, domain.Scene{ID: "A"}, ocrProfile("A", domain.OCRAuto))
	lane.Tick(ctx, domain.Scene{ID: "B"}, ocrProfile("B", domain.OCRAuto))

	require.Len(t, ocr.starts, 2)
	assert.Equal(t, "B", ocr.starts[1].SceneID)
	assert.Equal(t, []string{domain.AutoLauncherSource}, ocr.stops)
	assert.Equal(t, "B", session.ActiveOCRSceneID)
	assert.Equal(t, "B", ocr.state.SceneID)
}

func TestOCRLane_SceneChangeToNonAutoStops(t *testing.T) {
	ocr := &mockOCR{}
	lane, session := newOCRLaneForTest(ocr)
	ctx := context.Background()

	lane.Tick(ctx, domain.Scene{ID: "A"}, ocrProfile("A", domain.OCRAuto))
	lane.Tick(ctx, domain.Scene{ID: "B"}, nil)

	assert.False(t, ocr.state.Running)
	assert.Len(t, ocr.starts, 1)
	assert.Empty(t, session.ActiveOCRSceneID)
}

func TestOCRLane_ModeChangeStopsOwnedSession(t *testing.T) {
	for _, mode := range []domain.OCRMode{domain.OCRNone, domain.OCRManual} {
		t.Run(string(mode), func(t *testing.T) {
			ocr := &mockOCR{}
			lane, _ := newOCRLaneForTest(ocr)
			scene := domain.Scene{ID: "A"}
			ctx := context.Background()

			lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))
			lane.Tick(ctx, scene, ocrProfile("A", mode))

			assert.False(t, ocr.state.Running)
			assert.Equal(t, []string{domain.AutoLauncherSource}, ocr.stops)
		})
	}
}

func TestOCRLane_ManualNeverStarts(t *testing.T) {
	ocr := &mockOCR{}
	lane, _ := newOCRLaneForTest(ocr)

	lane.Tick(context.Background(), domain.Scene{ID: "A"}, ocrProfile("A", domain.OCRManual))

	assert.Empty(t, ocr.starts)
	assert.Empty(t, ocr.stops)
}

func TestOCRLane_StartFailureRetries(t *testing.T) {
	ocr := &mockOCR{startErr: errBackend}
	lane, session := newOCRLaneForTest(ocr)
	scene := domain.Scene{ID: "A"}
	ctx := context.Background()

	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))
	assert.Empty(t, session.ActiveOCRSceneID)

	ocr.startErr = nil
	lane.Tick(ctx, scene, ocrProfile("A", domain.OCRAuto))
	assert.Len(t, ocr.starts, 2)
	assert.True(t, ocr.state.OwnedByEngine())
}

func TestOCRLane_TeardownStopsOwned(t *testing.T) {
	ocr := &mockOCR{}
	lane, session := newOCRLaneForTest(ocr)
	ctx := context.Background()

	lane.Tick(ctx, domain.Scene{ID: "A"}, ocrProfile("A", domain.OCRAuto))
	lane.Teardown(ctx)

	assert.False(t, ocr.state.Running)
	assert.Empty(t, session.LastOCRSceneID)

	// Nothing running: no stop call.
	lane.Teardown(ctx)
	assert.Len(t, ocr.stops, 1)
}
