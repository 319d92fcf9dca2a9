package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/infra"
	"github.com/eliteGoblin/scenehook/internal/policy"
	"github.com/eliteGoblin/scenehook/internal/usecase"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which agent script would be picked",
	Long: `Runs the script matcher against the scripts directory and prints the chosen
script with every candidate considered.`,
	RunE: runResolve,
}

var bitnessCmd = &cobra.Command{
	Use:   "bitness <executable>",
	Short: "Classify an executable as x86 or x64",
	Args:  cobra.ExactArgs(1),
	RunE:  runBitness,
}

var locateCmd = &cobra.Command{
	Use:   "locate <process-name>",
	Short: "Find the process the engine would hook",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocate,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List text-hook tools and whether an instance is running",
	RunE:  runTools,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage per-scene launch profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List launch profiles",
	RunE:  runProfileList,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <scene-id>",
	Short: "Create or update a launch profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSet,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <scene-id>",
	Short: "Delete a launch profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var (
	resolveScriptsDir string
	resolveQuery      domain.ScriptQuery

	profileName     string
	profileTextHook string
	profileOCR      string
	profileScript   string
	profileDelay    float64
	profileGameID   string
)

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveScriptsDir, "scripts-dir", "", "Scripts directory (default from config)")
	f.StringVar(&resolveQuery.ProcessName, "process", "", "Executable name")
	f.StringVar(&resolveQuery.WindowTitle, "title", "", "Window title")
	f.StringVar(&resolveQuery.SceneName, "scene", "", "Scene name")
	f.StringVar(&resolveQuery.ExplicitGameID, "game-id", "", "Explicit game/title ID")
	f.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	locateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	toolsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	pf := profileSetCmd.Flags()
	pf.StringVar(&profileName, "name", "", "Scene name (legacy lookup key)")
	pf.StringVar(&profileTextHook, "text-hook", "", "Text hook mode: none, textractor, luna, agent")
	pf.StringVar(&profileOCR, "ocr", "", "OCR mode: none, manual, auto")
	pf.StringVar(&profileScript, "script", "", "Agent script path (empty to auto-resolve)")
	pf.Float64Var(&profileDelay, "delay", 0, "Launch delay in seconds (0-300)")
	pf.StringVar(&profileGameID, "game-id", "", "Explicit game/title ID")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q := resolveQuery
	q.ScriptsDir = resolveScriptsDir
	if q.ScriptsDir == "" {
		q.ScriptsDir = cfg.Agent.ScriptsDir
	}
	q.ScriptsDir = infra.NewFileSystem().ExpandHome(q.ScriptsDir)

	res := newResolver(cfg).Resolve(q)
	if jsonOutput {
		return printJSON(res)
	}

	fmt.Printf("Scripts dir: %s\n", q.ScriptsDir)
	fmt.Printf("Reason:      %s\n", res.Reason)
	if res.IsSwitchTarget {
		fmt.Println("Target:      Switch emulator")
	}
	if res.TitleID != "" {
		fmt.Printf("Title ID:    %s\n", res.TitleID)
	}
	if res.Matched() {
		fmt.Printf("Script:      %s\n", res.Path)
	} else {
		fmt.Println("Script:      (none)")
	}
	if len(res.Candidates) > 0 {
		fmt.Println("\nCandidates:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, c := range res.Candidates {
			fmt.Fprintf(w, "  %.3f\t%s\t%s\n", c.Score, c.Reason, c.Path)
		}
		w.Flush()
	}
	return nil
}

func runBitness(cmd *cobra.Command, args []string) error {
	fs := infra.NewFileSystem()
	bi := infra.NewBinaryInspector(fs)
	bits := bi.Bitness(args[0])
	fmt.Println(bits)

	if bits != domain.BitnessUnknown {
		other := domain.BitnessX86
		if bits == domain.BitnessX86 {
			other = domain.BitnessX64
		}
		if sibling := bi.SiblingPath(args[0], other); sibling != "" {
			fmt.Printf("%s sibling: %s\n", other, sibling)
		}
	}
	return nil
}

type locateResult struct {
	PID            int    `json:"pid"`
	ExecutablePath string `json:"executable_path,omitempty"`
	WindowTitle    string `json:"window_title,omitempty"`
	Bitness        string `json:"bitness,omitempty"`
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if cfg.Log.Debug {
		logger = createLogger(cfg.Log)
	}

	locator := usecase.NewLocator(infra.NewProcessInspector(logger), locatorConfig(cfg), logger)

	pid := locator.GetPidByProcessName(cmd.Context(), args[0])
	if pid <= 0 {
		return fmt.Errorf("no running process named %s", args[0])
	}
	res := locateResult{
		PID:            pid,
		ExecutablePath: locator.GetProcessExecutablePath(pid),
		WindowTitle:    locator.GetLiveWindowTitle(pid),
	}
	if res.ExecutablePath != "" {
		res.Bitness = string(infra.NewBinaryInspector(infra.NewFileSystem()).Bitness(res.ExecutablePath))
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("PID:     %d\n", res.PID)
	fmt.Printf("Path:    %s\n", res.ExecutablePath)
	fmt.Printf("Title:   %s\n", res.WindowTitle)
	fmt.Printf("Bitness: %s\n", res.Bitness)
	return nil
}

type toolStatus struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Mode         string   `json:"mode"`
	ProcessNames []string `json:"process_names"`
	Path64       string   `json:"path_x64,omitempty"`
	Path32       string   `json:"path_x86,omitempty"`
	RunningPIDs  []int    `json:"running_pids"`
}

func toolStatuses(registry *policy.Registry, locator *usecase.Locator) []toolStatus {
	var out []toolStatus
	for _, p := range registry.GetAll() {
		pids := locator.RunningPIDs(p.ProcessNames()...)
		if pids == nil {
			pids = []int{}
		}
		out = append(out, toolStatus{
			ID:           p.ID(),
			Name:         p.Name(),
			Mode:         string(p.Mode()),
			ProcessNames: p.ProcessNames(),
			Path64:       p.ExecutablePath(domain.BitnessX64),
			Path32:       p.ExecutablePath(domain.BitnessX86),
			RunningPIDs:  pids,
		})
	}
	return out
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	locator := usecase.NewLocator(infra.NewProcessInspector(logger), locatorConfig(cfg), logger)

	statuses := toolStatuses(newPolicies(cfg), locator)
	if jsonOutput {
		return printJSON(statuses)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODE\tPROCESSES\tRUNNING")
	for _, s := range statuses {
		running := "-"
		if len(s.RunningPIDs) > 0 {
			running = fmt.Sprint(s.RunningPIDs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Mode, strings.Join(s.ProcessNames, ","), running)
	}
	return w.Flush()
}

func withStore(fn func(domain.ProfileStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openProfileStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	return withStore(func(store domain.ProfileStore) error {
		profiles, err := store.List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No launch profiles.")
			return nil
		}
		sort.Slice(profiles, func(i, j int) bool { return profiles[i].SceneID < profiles[j].SceneID })

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCENE ID\tNAME\tTEXT HOOK\tOCR\tDELAY\tGAME ID\tSCRIPT")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%gs\t%s\t%s\n",
				p.SceneID, p.SceneName, p.TextHookMode, p.OCRMode, p.LaunchDelaySeconds, p.GameID, p.AgentScriptPath)
		}
		return w.Flush()
	})
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	return withStore(func(store domain.ProfileStore) error {
		profile := domain.LaunchProfile{
			SceneID:      args[0],
			TextHookMode: domain.TextHookNone,
			OCRMode:      domain.OCRNone,
		}
		if existing, err := store.GetForScene(domain.Scene{ID: args[0]}); err != nil {
			return err
		} else if existing != nil {
			profile = *existing
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			profile.SceneName = profileName
		}
		if flags.Changed("text-hook") {
			mode := domain.TextHookMode(profileTextHook)
			if !mode.Valid() {
				return fmt.Errorf("invalid text hook mode %q", profileTextHook)
			}
			profile.TextHookMode = mode
		}
		if flags.Changed("ocr") {
			mode := domain.OCRMode(profileOCR)
			if !mode.Valid() {
				return fmt.Errorf("invalid OCR mode %q", profileOCR)
			}
			profile.OCRMode = mode
		}
		if flags.Changed("script") {
			profile.AgentScriptPath = profileScript
		}
		if flags.Changed("delay") {
			profile.LaunchDelaySeconds = profileDelay
		}
		if flags.Changed("game-id") {
			profile.GameID = profileGameID
		}

		profile.Normalize()
		if err := store.Upsert(profile); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		fmt.Printf("Saved profile for scene %s (text hook: %s, ocr: %s)\n",
			profile.SceneID, profile.TextHookMode, profile.OCRMode)
		return nil
	})
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(store domain.ProfileStore) error {
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted profile for scene %s\n", args[0])
		return nil
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
