// Package daemon implements the automation engine: two independent polling
// loops that keep helper processes in step with the active scene.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/policy"
	"github.com/eliteGoblin/scenehook/internal/usecase"
)

// ErrEngineRunning is returned by Start when the loops are already running.
var ErrEngineRunning = errors.New("engine already running")

// teardownTimeout bounds how long Stop waits for the owned OCR session to exit.
const teardownTimeout = 10 * time.Second

// EngineConfig holds engine timing and lane configuration.
type EngineConfig struct {
	DefaultInterval time.Duration // Idle text-hook cadence (default 5s)
	FastInterval    time.Duration // Cadence while a target is being validated (default 500ms)
	DecayStep       time.Duration // Step back toward DefaultInterval after a fast tick
	OCRInterval     time.Duration // Fixed OCR lane cadence (default 1s)

	Locator  usecase.LocatorConfig
	TextHook usecase.TextHookConfig
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultInterval: 5 * time.Second,
		FastInterval:    500 * time.Millisecond,
		DecayStep:       1 * time.Second,
		OCRInterval:     1 * time.Second,
		Locator:         usecase.DefaultLocatorConfig(),
		TextHook:        usecase.TextHookConfig{MaxRelaunches: usecase.DefaultMaxAgentRelaunches},
	}
}

// EngineDeps are the collaborators the engine is assembled from.
type EngineDeps struct {
	Source    domain.SceneSource
	Profiles  domain.ProfileStore
	OCR       domain.OCRController
	Inspector domain.ProcessInspector
	Resolver  domain.ScriptResolver
	Policies  *policy.Registry
	Binaries  domain.BinaryInspector
	Launcher  domain.ProcessLauncher
	FS        domain.FileSystem
}

// Engine drives the text-hook and OCR lanes on independent timers.
// Each lane finishes a tick before scheduling its next one.
type Engine struct {
	config   EngineConfig
	scenes   *usecase.SceneResolver
	profiles domain.ProfileStore
	textHook *usecase.TextHookLane
	ocrLane  *usecase.OCRLane
	session  *usecase.AutomationSession
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine assembles an engine and its lanes.
func NewEngine(config EngineConfig, deps EngineDeps, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	config = config.withDefaults()

	session := usecase.NewAutomationSession(config.DefaultInterval)
	scenes := usecase.NewSceneResolver(deps.Source, logger.Named("scene"))
	locator := usecase.NewLocator(deps.Inspector, config.Locator, logger.Named("locator"))

	textHook := usecase.NewTextHookLane(config.TextHook, usecase.TextHookDeps{
		Scenes:   scenes,
		Locator:  locator,
		Resolver: deps.Resolver,
		Policies: deps.Policies,
		Binaries: deps.Binaries,
		Launcher: deps.Launcher,
		Profiles: deps.Profiles,
		FS:       deps.FS,
	}, session, logger.Named("texthook"))

	return &Engine{
		config:   config,
		scenes:   scenes,
		profiles: deps.Profiles,
		textHook: textHook,
		ocrLane:  usecase.NewOCRLane(deps.OCR, session, logger.Named("ocr")),
		session:  session,
		logger:   logger,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = def.DefaultInterval
	}
	if c.FastInterval <= 0 || c.FastInterval > c.DefaultInterval {
		c.FastInterval = min(def.FastInterval, c.DefaultInterval)
	}
	if c.DecayStep <= 0 {
		c.DecayStep = def.DecayStep
	}
	if c.OCRInterval <= 0 {
		c.OCRInterval = def.OCRInterval
	}
	return c
}

// Start launches both polling loops. It returns ErrEngineRunning if they are
// already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrEngineRunning
	}

	e.session.Reset(e.config.DefaultInterval)
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(2)
	go e.loop(loopCtx, "texthook", e.textHookTick)
	go e.loop(loopCtx, "ocr", e.ocrTick)

	e.logger.Info("automation engine started",
		zap.Duration("interval", e.config.DefaultInterval),
		zap.Duration("ocr_interval", e.config.OCRInterval))
	return nil
}

// Stop cancels both loops, kills the supervised agent, stops the engine-owned
// OCR session and resets all tracking. Safe to call when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.cancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	e.textHook.ResetAgentTracking()
	e.ocrLane.Teardown(ctx)
	e.session.Reset(e.config.DefaultInterval)

	e.logger.Info("automation engine stopped")
}

// Run starts the engine and blocks until ctx is canceled, then stops it.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	e.logger.Info("automation engine stopping")
	e.Stop()
	return ctx.Err()
}

// loop runs tick, then waits for the interval it returned.
func (e *Engine) loop(ctx context.Context, lane string, tick func(context.Context) time.Duration) {
	defer e.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(e.safeTick(ctx, lane, tick))
	}
}

func (e *Engine) safeTick(ctx context.Context, lane string, tick func(context.Context) time.Duration) (next time.Duration) {
	next = e.config.DefaultInterval
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked",
				zap.String("lane", lane),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	return tick(ctx)
}

// resolve returns the active scene and its profile (which may be nil).
// ok is false when the tick should be skipped.
func (e *Engine) resolve(ctx context.Context, lane string) (domain.Scene, *domain.LaunchProfile, bool) {
	scene := e.scenes.Current(ctx)
	if scene == nil {
		return domain.Scene{}, nil, false
	}
	profile, err := e.profiles.GetForScene(*scene)
	if err != nil {
		e.logger.Warn("failed to load launch profile",
			zap.String("lane", lane),
			zap.String("scene", scene.Name),
			zap.Error(err))
		return domain.Scene{}, nil, false
	}
	if profile != nil {
		profile.Normalize()
	}
	return *scene, profile, true
}

func (e *Engine) textHookTick(ctx context.Context) time.Duration {
	scene, profile, ok := e.resolve(ctx, "texthook")
	if !ok {
		return e.session.PollingInterval
	}
	hint := e.textHook.Tick(ctx, scene, profile)
	next := e.nextInterval(e.session.PollingInterval, hint)
	if next != e.session.PollingInterval {
		e.logger.Debug("polling interval changed",
			zap.Duration("from", e.session.PollingInterval),
			zap.Duration("to", next),
			zap.Stringer("hint", hint))
	}
	e.session.PollingInterval = next
	return next
}

func (e *Engine) ocrTick(ctx context.Context) time.Duration {
	scene, profile, ok := e.resolve(ctx, "ocr")
	if ok {
		e.ocrLane.Tick(ctx, scene, profile)
	}
	return e.config.OCRInterval
}

// nextInterval applies a lane hint to the current text-hook cadence.
func (e *Engine) nextInterval(current time.Duration, hint usecase.IntervalHint) time.Duration {
	switch hint {
	case usecase.HintFast:
		return e.config.FastInterval
	case usecase.HintDecay:
		return min(current+e.config.DecayStep, e.config.DefaultInterval)
	case usecase.HintReset:
		return e.config.DefaultInterval
	default:
		return current
	}
}
