package ocr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
)

// DefaultStopGrace is how long Stop waits for a clean exit before killing.
const DefaultStopGrace = 3 * time.Second

// SceneEnv carries the scene a session is scoped to into the subprocess.
const SceneEnv = "SCENEHOOK_OCR_SCENE_ID"

// ManualFlag is appended to the OCR command line for manual sessions.
const ManualFlag = "--manual"

const (
	maxLineSize     = 1 << 20
	outputWaitDelay = 2 * time.Second
)

// Config describes how to spawn the OCR subprocess.
type Config struct {
	Command   string
	Args      []string
	WorkDir   string
	StopGrace time.Duration
}

// session is one running OCR subprocess.
type session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	source  string
	mode    domain.OCRMode
	sceneID string

	paused      bool
	forceStable bool
}

// Manager implements domain.OCRController. At most one session runs at a time.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	sess *session

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Message
}

// NewManager creates an OCR manager.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	return &Manager{cfg: cfg, logger: logger, subs: make(map[int]chan Message)}
}

// State returns a snapshot of the current session.
func (m *Manager) State() domain.OCRState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sess
	if s == nil {
		return domain.OCRState{}
	}
	return domain.OCRState{
		Running: true,
		Paused:  s.paused,
		Source:  s.source,
		Mode:    s.mode,
		SceneID: s.sceneID,
		PID:     s.cmd.Process.Pid,
	}
}

// ForceStable reports the last force-stable flag announced by the subprocess.
func (m *Manager) ForceStable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil && m.sess.forceStable
}

// Start launches a new session tagged with req.Source.
func (m *Manager) Start(ctx context.Context, req domain.OCRStartRequest) error {
	if m.cfg.Command == "" {
		return errors.New("OCR command not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		return fmt.Errorf("%w: OCR session owned by %q", domain.ErrAlreadyRunning, m.sess.source)
	}

	args := append([]string{}, m.cfg.Args...)
	if req.Mode == domain.OCRManual {
		args = append(args, ManualFlag)
	}
	cmd := exec.Command(m.cfg.Command, args...)
	cmd.Dir = m.cfg.WorkDir
	cmd.Env = append(os.Environ(), SceneEnv+"="+req.SceneID)
	cmd.WaitDelay = outputWaitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open OCR stdin: %w", err)
	}
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		return fmt.Errorf("failed to start OCR: %w", err)
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.OCRAuto
	}
	s := &session{
		cmd:     cmd,
		stdin:   stdin,
		done:    make(chan struct{}),
		source:  req.Source,
		mode:    mode,
		sceneID: req.SceneID,
	}
	m.sess = s

	log := m.logger.With(zap.Int("ocr_pid", cmd.Process.Pid), zap.String("source", req.Source))
	go m.readMessages(s, outR, log)
	go logLines(errR, log)
	go m.wait(s, outW, errW, log)

	log.Info("OCR started",
		zap.String("mode", string(mode)),
		zap.String("scene", req.SceneID))
	return nil
}

func (m *Manager) wait(s *session, outW, errW *io.PipeWriter, log *zap.Logger) {
	err := s.cmd.Wait()
	outW.Close()
	errW.Close()

	m.mu.Lock()
	if m.sess == s {
		m.sess = nil
	}
	m.mu.Unlock()
	close(s.done)

	if err != nil {
		log.Info("OCR exited", zap.Error(err))
	} else {
		log.Info("OCR exited")
	}
}

func (m *Manager) readMessages(s *session, r io.Reader, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		msg, ok, err := ParseLine(line)
		switch {
		case !ok:
			log.Debug("ocr output", zap.String("line", line))
		case err != nil:
			log.Warn("unparseable OCR message", zap.String("line", line), zap.Error(err))
		default:
			m.apply(s, msg, log)
			m.publish(msg)
		}
	}
	// Keep draining so the subprocess never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// apply folds an event into the session state.
func (m *Manager) apply(s *session, msg Message, log *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch msg.Event {
	case EventPaused:
		s.paused = true
	case EventUnpaused:
		s.paused = false
	case EventForceStableChanged:
		if enabled, ok := msg.Data["enabled"].(bool); ok {
			s.forceStable = enabled
		}
	case EventError:
		log.Warn("OCR reported error", zap.String("error", msg.ErrorText()))
	case EventStarted, EventStopped, EventConfigReloaded:
		log.Debug("ocr event", zap.String("event", string(msg.Event)))
	}
}

// Stop ends the running session. With onlyIfSource set, a session started by any
// other source is left untouched. The subprocess gets a stop command and the grace
// period to exit before it is killed.
func (m *Manager) Stop(ctx context.Context, onlyIfSource string) (bool, error) {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return false, nil
	}
	if onlyIfSource != "" && s.source != onlyIfSource {
		m.mu.Unlock()
		m.logger.Debug("OCR owned by another source, not stopping",
			zap.String("owner", s.source),
			zap.String("requested_by", onlyIfSource))
		return false, nil
	}
	if err := m.writeLocked(s, Command{Command: CmdStop, ID: uuid.NewString()}); err != nil {
		m.logger.Debug("stop command not delivered", zap.Error(err))
	}
	m.mu.Unlock()

	timer := time.NewTimer(m.cfg.StopGrace)
	defer timer.Stop()
	select {
	case <-s.done:
		return true, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	m.logger.Info("OCR did not exit in time, killing", zap.Int("ocr_pid", s.cmd.Process.Pid))
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return false, fmt.Errorf("failed to kill OCR: %w", err)
	}
	<-s.done
	return true, nil
}

// Send writes a command to the running session and returns its id.
func (m *Manager) Send(cmd Command) (string, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return "", fmt.Errorf("OCR: %w", domain.ErrNotRunning)
	}
	if err := m.writeLocked(m.sess, cmd); err != nil {
		return "", err
	}
	return cmd.ID, nil
}

func (m *Manager) writeLocked(s *session, cmd Command) error {
	line, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if _, err := s.stdin.Write(line); err != nil {
		return fmt.Errorf("failed to write OCR command: %w", err)
	}
	return nil
}

func (m *Manager) sendSimple(name CommandName) error {
	_, err := m.Send(Command{Command: name})
	return err
}

func (m *Manager) Pause() error             { return m.sendSimple(CmdPause) }
func (m *Manager) Unpause() error           { return m.sendSimple(CmdUnpause) }
func (m *Manager) TogglePause() error       { return m.sendSimple(CmdTogglePause) }
func (m *Manager) RequestStatus() error     { return m.sendSimple(CmdGetStatus) }
func (m *Manager) TriggerManualOCR() error  { return m.sendSimple(CmdManualOCR) }
func (m *Manager) ToggleForceStable() error { return m.sendSimple(CmdToggleForceStable) }

// ReloadConfig asks the subprocess to re-read its configuration. data is optional.
func (m *Manager) ReloadConfig(data map[string]any) error {
	cmd := Command{Command: CmdReloadConfig}
	if len(data) > 0 {
		cmd.Data = data
	}
	_, err := m.Send(cmd)
	return err
}

// SetForceStable sets force-stable mode explicitly.
func (m *Manager) SetForceStable(enabled bool) error {
	_, err := m.Send(Command{Command: CmdSetForceStable, Data: map[string]any{"enabled": enabled}})
	return err
}

// Subscribe returns a channel receiving every structured message. Slow
// subscribers miss messages rather than block the reader. Call cancel to stop.
func (m *Manager) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, 64)
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(msg Message) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func logLines(r io.Reader, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		log.Debug("ocr stderr", zap.String("line", sc.Text()))
	}
	_, _ = io.Copy(io.Discard, r)
}

// Ensure Manager implements domain.OCRController.
var _ domain.OCRController = (*Manager)(nil)
