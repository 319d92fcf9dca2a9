//go:build integration && !windows

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/scenehook/internal/daemon"
	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/infra"
	"github.com/eliteGoblin/scenehook/internal/matcher"
	"github.com/eliteGoblin/scenehook/internal/ocr"
	"github.com/eliteGoblin/scenehook/internal/policy"
	"github.com/eliteGoblin/scenehook/internal/usecase"
	"github.com/eliteGoblin/scenehook/test/fixtures"
)

// staticScenes is a scene source pinned to one scene.
type staticScenes struct {
	mu    sync.Mutex
	scene *domain.Scene
	exe   string
}

func (s *staticScenes) set(scene *domain.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = scene
}

func (s *staticScenes) CurrentScene(ctx context.Context) (*domain.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scene == nil {
		return nil, domain.ErrNoScene
	}
	scene := *s.scene
	return &scene, nil
}

func (s *staticScenes) ExecutableName(ctx context.Context, sceneID string) (string, error) {
	return s.exe, nil
}

func (s *staticScenes) WindowTitle(ctx context.Context, sceneID string) (string, error) {
	return "", nil
}

const agentScript = `#!/bin/sh
echo "$$ $*" >> %q
while :; do sleep 1; done
`

const gameScript = `#!/bin/sh
while :; do sleep 1; done
`

const ocrScript = `#!/bin/sh
echo 'OCRMSG:{"event":"started","data":{"scene":"'"$SCENEHOOK_OCR_SCENE_ID"'"}}'
while IFS= read -r line; do
  case "$line" in
    'OCRCMD:{"command":"stop"'*) exit 0 ;;
  esac
done
`

// agentLaunches returns one "<pid> <args>" line per agent start.
func agentLaunches(logPath string) []string {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// startGame runs a shell loop whose process name is name.
func startGame(dir, name string) *exec.Cmd {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(gameScript), 0755)).To(Succeed())

	cmd := exec.Command(path)
	Expect(cmd.Start()).To(Succeed())
	return cmd
}

var _ = Describe("Automation engine", func() {
	var (
		tempDir    string
		scriptsDir string
		agentPath  string
		agentLog   string
		scenes     *staticScenes
		store      *infra.JSONProfileStore
		ocrManager *ocr.Manager
		inspector  domain.ProcessInspector
		game       *exec.Cmd
		engine     *daemon.Engine
	)

	newEngine := func() *daemon.Engine {
		fs := infra.NewFileSystem()
		config := daemon.DefaultEngineConfig()
		config.DefaultInterval = 100 * time.Millisecond
		config.FastInterval = 50 * time.Millisecond
		config.OCRInterval = 50 * time.Millisecond
		config.Locator = usecase.LocatorConfig{}
		config.TextHook = usecase.TextHookConfig{
			AgentPath:     agentPath,
			ScriptsDir:    scriptsDir,
			MaxRelaunches: usecase.DefaultMaxAgentRelaunches,
		}
		return daemon.NewEngine(config, daemon.EngineDeps{
			Source:    scenes,
			Profiles:  store,
			OCR:       ocrManager,
			Inspector: inspector,
			Resolver:  matcher.NewResolver(matcher.DefaultOptions()),
			Policies:  policy.NewRegistry(policy.ToolSettings{}, policy.ToolSettings{}),
			Binaries:  infra.NewBinaryInspector(fs),
			Launcher:  infra.NewLauncher(fs, nil),
			FS:        fs,
		}, nil)
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "scenehook-integration-*")
		Expect(err).NotTo(HaveOccurred())

		scriptsDir = filepath.Join(tempDir, "scripts")
		agentLog = filepath.Join(tempDir, "agent.log")
		agentPath = filepath.Join(tempDir, "agent.sh")
		Expect(os.WriteFile(agentPath, []byte(fmt.Sprintf(agentScript, agentLog)), 0755)).To(Succeed())

		ocrPath := filepath.Join(tempDir, "ocr.sh")
		Expect(os.WriteFile(ocrPath, []byte(ocrScript), 0755)).To(Succeed())
		ocrManager = ocr.NewManager(ocr.Config{Command: ocrPath, StopGrace: time.Second}, nil)

		store, err = infra.NewJSONProfileStore(filepath.Join(tempDir, "profiles.json"))
		Expect(err).NotTo(HaveOccurred())

		inspector = infra.NewProcessInspector(nil)
		scenes = &staticScenes{
			scene: &domain.Scene{ID: "S1", Name: "Game Alpha"},
			exe:   "GameAlpha.exe",
		}
		game = startGame(tempDir, "GameAlpha.exe")
	})

	AfterEach(func() {
		if engine != nil {
			engine.Stop()
			engine = nil
		}
		if game != nil && game.Process != nil {
			_ = game.Process.Kill()
			_ = game.Wait()
		}
		os.RemoveAll(tempDir)
	})

	Context("when the scene uses the hook agent", func() {
		BeforeEach(func() {
			Expect(store.Upsert(domain.LaunchProfile{
				SceneID:      "S1",
				SceneName:    "Game Alpha",
				TextHookMode: domain.TextHookAgent,
				OCRMode:      domain.OCRNone,
			})).To(Succeed())
		})

		It("should hook the game exactly once with the matching script", func() {
			_, err := fixtures.NewFakeScriptsDir(scriptsDir).Create("GameAlpha.js", "OtherGame.js")
			Expect(err).NotTo(HaveOccurred())

			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())

			Eventually(func() []string { return agentLaunches(agentLog) }, 5*time.Second, 50*time.Millisecond).
				Should(HaveLen(1))
			Consistently(func() []string { return agentLaunches(agentLog) }, 500*time.Millisecond, 50*time.Millisecond).
				Should(HaveLen(1))

			fields := strings.Fields(agentLaunches(agentLog)[0])
			Expect(fields).To(ConsistOf(
				fields[0],
				"--script="+filepath.Join(scriptsDir, "GameAlpha.js"),
				"--pname="+strconv.Itoa(game.Process.Pid),
			))
		})

		It("should kill the agent when the engine stops", func() {
			_, err := fixtures.NewFakeScriptsDir(scriptsDir).Create("GameAlpha.js")
			Expect(err).NotTo(HaveOccurred())

			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())
			Eventually(func() []string { return agentLaunches(agentLog) }, 5*time.Second, 50*time.Millisecond).
				Should(HaveLen(1))

			agentPID, err := strconv.Atoi(strings.Fields(agentLaunches(agentLog)[0])[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(inspector.IsRunning(agentPID)).To(BeTrue())

			engine.Stop()
			engine = nil
			Eventually(func() bool { return inspector.IsRunning(agentPID) }, 3*time.Second, 50*time.Millisecond).
				Should(BeFalse())
		})

		It("should not spawn anything when the scripts are ambiguous", func() {
			_, err := fixtures.NewFakeScriptsDir(scriptsDir).Create("GameAlpha.js", "GameAlphaDemo.js")
			Expect(err).NotTo(HaveOccurred())

			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())

			Consistently(func() []string { return agentLaunches(agentLog) }, time.Second, 50*time.Millisecond).
				Should(BeEmpty())
		})
	})

	Context("when the scene wants automatic OCR", func() {
		BeforeEach(func() {
			Expect(store.Upsert(domain.LaunchProfile{
				SceneID:      "S1",
				SceneName:    "Game Alpha",
				TextHookMode: domain.TextHookNone,
				OCRMode:      domain.OCRAuto,
			})).To(Succeed())
		})

		It("should own the session and stop it with the engine", func() {
			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())

			Eventually(func() domain.OCRState { return ocrManager.State() }, 5*time.Second, 50*time.Millisecond).
				Should(SatisfyAll(
					HaveField("Running", BeTrue()),
					HaveField("SceneID", "S1"),
				))
			Expect(ocrManager.State().OwnedByEngine()).To(BeTrue())

			engine.Stop()
			engine = nil
			Expect(ocrManager.State().Running).To(BeFalse())
		})

		It("should stop the session when the scene goes away", func() {
			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())
			Eventually(func() bool { return ocrManager.State().Running }, 5*time.Second, 50*time.Millisecond).
				Should(BeTrue())

			scenes.set(&domain.Scene{ID: "S2", Name: "Menu"})

			Eventually(func() bool { return ocrManager.State().Running }, 5*time.Second, 50*time.Millisecond).
				Should(BeFalse())
		})

		It("should leave a user session alone", func() {
			Expect(ocrManager.Start(context.Background(), domain.OCRStartRequest{
				Source: "user",
				Mode:   domain.OCRManual,
			})).To(Succeed())
			userPID := ocrManager.State().PID

			engine = newEngine()
			Expect(engine.Start(context.Background())).To(Succeed())
			Consistently(func() int { return ocrManager.State().PID }, 500*time.Millisecond, 50*time.Millisecond).
				Should(Equal(userPID))

			engine.Stop()
			engine = nil
			Expect(ocrManager.State().Running).To(BeTrue())

			_, err := ocrManager.Stop(context.Background(), "")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
