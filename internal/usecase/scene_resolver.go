package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// SceneResolver wraps the capture backend with a last-known-scene fallback and
// best-effort source lookups. It never returns errors.
type SceneResolver struct {
	source domain.SceneSource
	logger *zap.Logger

	mu   sync.Mutex
	last *domain.Scene
}

// NewSceneResolver creates a scene resolver.
func NewSceneResolver(source domain.SceneSource, logger *zap.Logger) *SceneResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SceneResolver{source: source, logger: logger}
}

// Current returns the active scene. On a backend failure it returns the last
// scene seen, or nil if there is none. An explicit "no scene" answer clears the cache.
func (r *SceneResolver) Current(ctx context.Context) *domain.Scene {
	scene, err := r.source.CurrentScene(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case err == nil && scene != nil:
		s := *scene
		r.last = &s
		return &s
	case errors.Is(err, domain.ErrNoScene), err == nil:
		r.last = nil
		return nil
	}

	if r.last == nil {
		r.logger.Debug("scene unavailable", zap.Error(err))
		return nil
	}
	r.logger.Debug("scene unavailable, using last known",
		zap.String("scene", r.last.Name),
		zap.Error(err))
	s := *r.last
	return &s
}

// ExecutableName returns the executable bound to the scene's capture source ("" on failure).
func (r *SceneResolver) ExecutableName(ctx context.Context, sceneID string) string {
	name, err := r.source.ExecutableName(ctx, sceneID)
	if err != nil {
		r.logger.Debug("executable name unavailable", zap.String("scene_id", sceneID), zap.Error(err))
		return ""
	}
	return name
}

// WindowTitle returns the window title bound to the scene's capture source ("" on failure).
func (r *SceneResolver) WindowTitle(ctx context.Context, sceneID string) string {
	title, err := r.source.WindowTitle(ctx, sceneID)
	if err != nil {
		r.logger.Debug("window title unavailable", zap.String("scene_id", sceneID), zap.Error(err))
		return ""
	}
	return title
}
