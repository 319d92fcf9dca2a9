package usecase

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/policy"
)

// DefaultMaxAgentRelaunches caps relaunches of an agent that keeps exiting.
const DefaultMaxAgentRelaunches = 3

// TextHookConfig holds the text-hook lane settings.
type TextHookConfig struct {
	AgentPath     string // Helper agent executable
	ScriptsDir    string // Directory of per-game agent scripts
	MaxRelaunches int    // Relaunches per hook before giving up (default 3)
}

// TextHookDeps are the collaborators of the text-hook lane.
type TextHookDeps struct {
	Scenes   *SceneResolver
	Locator  *Locator
	Resolver domain.ScriptResolver
	Policies *policy.Registry
	Binaries domain.BinaryInspector
	Launcher domain.ProcessLauncher
	Profiles domain.ProfileStore
	FS       domain.FileSystem
}

// TextHookLane decides which text-hook helper should run for the active scene
// and keeps at most one supervised agent alive.
type TextHookLane struct {
	config  TextHookConfig
	deps    TextHookDeps
	session *AutomationSession
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	agentPathWarned bool
}

// NewTextHookLane creates the text-hook lane over a shared session.
func NewTextHookLane(config TextHookConfig, deps TextHookDeps, session *AutomationSession, logger *zap.Logger) *TextHookLane {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRelaunches <= 0 {
		config.MaxRelaunches = DefaultMaxAgentRelaunches
	}
	return &TextHookLane{
		config:  config,
		deps:    deps,
		session: session,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Tick runs one text-hook evaluation for scene. profile may be nil.
func (l *TextHookLane) Tick(ctx context.Context, scene domain.Scene, profile *domain.LaunchProfile) IntervalHint {
	mode := domain.TextHookNone
	if profile != nil {
		mode = profile.TextHookMode
	}

	switch mode {
	case domain.TextHookAgent:
		return l.runAgent(ctx, scene, *profile)
	case domain.TextHookTextractor, domain.TextHookLuna:
		l.ResetAgentTracking()
		return l.runTool(ctx, scene, *profile)
	default:
		l.ResetAgentTracking()
		clear(l.session.ToolTargets)
		return HintDecay
	}
}

// ResetAgentTracking kills the supervised agent, if any, and forgets the hook target.
func (l *TextHookLane) ResetAgentTracking() {
	l.killAgent()
	l.session.clearHook()
}

func (l *TextHookLane) killAgent() {
	agent := l.session.Agent
	if agent == nil {
		return
	}
	l.session.Agent = nil
	if !agent.Running() {
		return
	}
	l.logger.Info("killing agent", zap.Int("agent_pid", agent.PID()))
	if err := agent.Kill(); err != nil {
		l.logger.Warn("failed to kill agent", zap.Int("agent_pid", agent.PID()), zap.Error(err))
	}
}

// runTool launches a detached Textractor/Luna instance once per game PID.
func (l *TextHookLane) runTool(ctx context.Context, scene domain.Scene, profile domain.LaunchProfile) IntervalHint {
	tool, ok := l.deps.Policies.ForMode(profile.TextHookMode)
	if !ok {
		l.logger.Warn("no tool policy for mode", zap.String("mode", string(profile.TextHookMode)))
		return HintKeep
	}
	log := l.logger.With(zap.String("tool", tool.ID()), zap.String("scene", scene.Name))

	exe := l.deps.Scenes.ExecutableName(ctx, scene.ID)
	if exe == "" {
		log.Debug("scene has no captured executable")
		return HintDecay
	}

	pid := l.deps.Locator.GetPidByProcessName(ctx, exe)
	if pid <= 0 {
		delete(l.session.ToolTargets, tool.ID())
		return HintReset
	}
	if l.session.ToolTargets[tool.ID()] == pid {
		return HintDecay
	}
	if running := l.deps.Locator.RunningPIDs(tool.ProcessNames()...); len(running) > 0 {
		log.Info("tool already running, not launching", zap.Ints("tool_pids", running))
		l.session.ToolTargets[tool.ID()] = pid
		return HintDecay
	}

	delay := profile.LaunchDelay()
	if delay <= 0 {
		delay = tool.LaunchDelay()
	}
	if !l.waitAndRecheck(ctx, exe, pid, delay, log) {
		return HintFast
	}

	path := l.toolPath(tool, pid, log)
	if path == "" {
		log.Warn("tool executable path not configured")
		return HintDecay
	}
	if err := l.deps.Launcher.StartDetached(path, tool.LaunchArgs(), tool.Minimized()); err != nil {
		log.Error("failed to launch tool", zap.String("path", path), zap.Error(err))
		return HintDecay
	}
	log.Info("launched tool", zap.String("path", path), zap.Int("game_pid", pid))
	l.session.ToolTargets[tool.ID()] = pid
	return HintDecay
}

// toolPath picks the configured tool build matching the game's bitness, deriving
// the sibling build from the other configured path when only one is set.
func (l *TextHookLane) toolPath(tool policy.ToolPolicy, pid int, log *zap.Logger) string {
	if !tool.MatchesBitness() {
		return tool.ExecutablePath(domain.BitnessUnknown)
	}
	bits := l.deps.Binaries.Bitness(l.deps.Locator.GetProcessExecutablePath(pid))
	path := tool.ExecutablePath(bits)
	if path == "" || bits == domain.BitnessUnknown {
		return path
	}
	if toolBits := l.deps.Binaries.Bitness(path); toolBits != domain.BitnessUnknown && toolBits != bits {
		if sibling := l.deps.Binaries.SiblingPath(path, bits); sibling != "" {
			log.Debug("using sibling tool build", zap.String("path", sibling), zap.String("bitness", string(bits)))
			return sibling
		}
		log.Warn("no tool build matches game bitness",
			zap.String("game_bitness", string(bits)),
			zap.String("tool_bitness", string(toolBits)))
	}
	return path
}

// waitAndRecheck sleeps for delay and confirms exe still resolves to pid.
func (l *TextHookLane) waitAndRecheck(ctx context.Context, exe string, pid int, delay time.Duration, log *zap.Logger) bool {
	if delay <= 0 {
		return true
	}
	log.Info("waiting before launch", zap.Duration("delay", delay), zap.Int("game_pid", pid))
	if err := l.sleep(ctx, delay); err != nil {
		return false
	}
	if current := l.deps.Locator.GetPidByProcessName(ctx, exe); current != pid {
		log.Info("process changed during delay, aborting",
			zap.Int("old_pid", pid),
			zap.Int("new_pid", current))
		return false
	}
	return true
}

// runAgent hooks the scene's game with the helper agent.
func (l *TextHookLane) runAgent(ctx context.Context, scene domain.Scene, profile domain.LaunchProfile) IntervalHint {
	if l.config.AgentPath == "" {
		if !l.agentPathWarned {
			l.logger.Warn("agent mode selected but no agent path configured")
			l.agentPathWarned = true
		}
		return HintKeep
	}
	clear(l.session.ToolTargets)
	log := l.logger.With(zap.String("scene", scene.Name))

	exe := l.deps.Scenes.ExecutableName(ctx, scene.ID)
	if exe == "" {
		log.Debug("scene has no captured executable")
		return HintDecay
	}
	title := l.deps.Scenes.WindowTitle(ctx, scene.ID)
	isSwitch := policy.IsSwitchEmulatorTarget(exe, title)

	script, res := l.resolveScript(scene, profile, exe, title, log)
	if script == "" {
		return HintDecay
	}
	gameID := profile.GameID
	if gameID == "" {
		gameID = res.TitleID
	}
	if gameID == "" {
		gameID = script
	}

	if hooked := l.session.LastHookedPID; hooked > 0 && !l.deps.Locator.Alive(hooked) {
		log.Info("hooked process exited, cleaning up agent",
			zap.Int("game_pid", hooked),
			zap.String("game_id", l.session.LastHookedGameID))
		l.ResetAgentTracking()
	}

	pid := l.deps.Locator.GetPidByProcessName(ctx, exe)
	if pid <= 0 {
		if l.session.LastHookedPID != -1 {
			log.Info("hooked process ended, cleaning up agent", zap.String("game_id", l.session.LastHookedGameID))
			l.ResetAgentTracking()
		}
		return HintReset
	}

	if l.session.Hooked(pid, gameID) {
		l.superviseAgent(pid, script, log)
		return HintDecay
	}

	if l.externalAgentRunning(log) {
		return HintDecay
	}
	l.killAgent()

	if !l.waitAndRecheck(ctx, exe, pid, profile.LaunchDelay(), log) {
		l.session.clearHook()
		return HintFast
	}
	if isSwitch {
		live := l.deps.Locator.GetLiveWindowTitle(pid)
		if live == "" {
			live = title
		}
		if !TitlesRoughlyMatch(scene.Name, live) {
			log.Info("window title does not match scene, skipping hook",
				zap.String("window_title", live),
				zap.Int("game_pid", pid))
			l.session.clearHook()
			return HintFast
		}
	}

	agent, err := l.spawnAgent(pid, script, log)
	if err != nil {
		return HintDecay
	}
	l.session.Agent = agent
	l.session.LastHookedPID = pid
	l.session.LastHookedGameID = gameID
	l.session.AgentRelaunches = 0

	if isSwitch && profile.GameID != "" && profile.AgentScriptPath == "" && identifiedByID(res.Reason) {
		l.persistScript(profile, script, log)
	}
	return HintDecay
}

// superviseAgent relaunches an agent that exited while its target is alive.
// At most one relaunch happens per tick.
func (l *TextHookLane) superviseAgent(pid int, script string, log *zap.Logger) {
	if agent := l.session.Agent; agent != nil && agent.Running() {
		return
	}
	if l.session.AgentRelaunches >= l.config.MaxRelaunches {
		if l.session.AgentRelaunches == l.config.MaxRelaunches {
			log.Warn("agent keeps exiting, giving up until the target changes", zap.Int("game_pid", pid))
			l.session.AgentRelaunches++
		}
		return
	}
	if l.externalAgentRunning(log) {
		return
	}
	l.session.AgentRelaunches++
	log.Info("agent not running, relaunching",
		zap.Int("game_pid", pid),
		zap.Int("attempt", l.session.AgentRelaunches))
	agent, err := l.spawnAgent(pid, script, log)
	if err != nil {
		l.session.Agent = nil
		return
	}
	l.session.Agent = agent
}

func (l *TextHookLane) spawnAgent(pid int, script string, log *zap.Logger) (domain.ChildProcess, error) {
	args := []string{"--script=" + script, "--pname=" + strconv.Itoa(pid)}
	agent, err := l.deps.Launcher.StartSupervised(l.config.AgentPath, args)
	if err != nil {
		log.Error("failed to launch agent", zap.String("agent", l.config.AgentPath), zap.Error(err))
		return nil, err
	}
	log.Info("launched agent",
		zap.Int("agent_pid", agent.PID()),
		zap.Int("game_pid", pid),
		zap.String("script", script))
	return agent, nil
}

// externalAgentRunning reports an agent process not started by this lane.
// The warning is logged once until the external agent goes away.
func (l *TextHookLane) externalAgentRunning(log *zap.Logger) bool {
	own := -1
	if l.session.Agent != nil && l.session.Agent.Running() {
		own = l.session.Agent.PID()
	}
	var foreign []int
	for _, pid := range l.deps.Locator.RunningPIDs(filepath.Base(l.config.AgentPath)) {
		if pid != own {
			foreign = append(foreign, pid)
		}
	}
	if len(foreign) == 0 {
		l.session.ExternalAgentWarned = false
		return false
	}
	if !l.session.ExternalAgentWarned {
		log.Warn("agent already running outside automation, not launching another", zap.Ints("pids", foreign))
		l.session.ExternalAgentWarned = true
	}
	return true
}

// resolveScript returns the configured script when it exists, else auto-resolves one.
func (l *TextHookLane) resolveScript(scene domain.Scene, profile domain.LaunchProfile, exe, title string, log *zap.Logger) (string, domain.ScriptResolution) {
	if configured := strings.TrimSpace(profile.AgentScriptPath); configured != "" {
		if path := l.deps.FS.ExpandHome(configured); l.deps.FS.Exists(path) {
			return path, domain.ScriptResolution{Path: path}
		}
		log.Warn("configured agent script missing, resolving automatically", zap.String("script", configured))
	}

	res := l.deps.Resolver.Resolve(domain.ScriptQuery{
		ScriptsDir:     l.deps.FS.ExpandHome(l.config.ScriptsDir),
		ProcessName:    exe,
		WindowTitle:    title,
		SceneName:      scene.Name,
		ExplicitGameID: profile.GameID,
	})
	if !res.Matched() {
		log.Info("no agent script resolved",
			zap.String("reason", string(res.Reason)),
			zap.String("process", exe),
			zap.Int("candidates", len(res.Candidates)))
		for _, c := range res.Candidates {
			log.Debug("script candidate", zap.String("path", c.Path), zap.Float64("score", c.Score))
		}
		return "", res
	}
	log.Debug("resolved agent script",
		zap.String("script", res.Path),
		zap.String("reason", string(res.Reason)),
		zap.Int("candidates", len(res.Candidates)))
	return res.Path, res
}

// identifiedByID reports a resolution pinned to a title id. Name and fuzzy
// matches are re-resolved every hook instead of being saved.
func identifiedByID(reason domain.MatchReason) bool {
	return reason == domain.ReasonExplicitID || reason == domain.ReasonTitleID
}

// persistScript writes an auto-resolved script back to the profile so later
// ticks skip resolution.
func (l *TextHookLane) persistScript(profile domain.LaunchProfile, script string, log *zap.Logger) {
	profile.AgentScriptPath = script
	if err := l.deps.Profiles.Upsert(profile); err != nil {
		log.Warn("failed to persist resolved script", zap.Error(err))
		return
	}
	log.Info("saved resolved script to profile", zap.String("script", script), zap.String("game_id", profile.GameID))
}
