package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/extfixture/internal/api"
	"github.com/mattjoyce/extfixture/internal/config"
	"github.com/mattjoyce/extfixture/internal/doctor"
	"github.com/mattjoyce/extfixture/internal/environment"
	"github.com/mattjoyce/extfixture/internal/fixture"
	"github.com/mattjoyce/extfixture/internal/installed"
	"github.com/mattjoyce/extfixture/internal/log"
	"github.com/mattjoyce/extfixture/internal/repository"
	"github.com/mattjoyce/extfixture/internal/resource"
	"github.com/mattjoyce/extfixture/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "setup":
		if hasHelpFlag(args) {
			printSetupHelp()
			return 0
		}
		return runSetup(args)
	case "check":
		if hasHelpFlag(args) {
			printCheckHelp()
			return 0
		}
		return runCheck(args)
	case "workspace":
		return runWorkspaceNoun(args)
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`extfixture - Disposable extension environments for tests

Usage:
  extfixture <command> [flags]

Commands:
  setup             Build a fresh fixture workspace from the bundled resources
  check             Validate the configuration and bundled resources
  workspace list    List workspaces under base_dir
  workspace prune   Remove stale, unlocked workspaces
  serve [name]      Browse a workspace's repositories over HTTP
  version           Show version information
  help              Show this help message

All commands accept --config PATH. Without it, $EXTFIXTURE_CONFIG,
./fixture.yaml and $XDG_CONFIG_HOME/extfixture/fixture.yaml are tried
before falling back to built-in defaults.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSetupHelp() {
	fmt.Println("Usage: extfixture setup [--config PATH] [--json] [--hold]")
	fmt.Println("Allocate a workspace, copy repository fixtures, generate extensions and initialize.")
	fmt.Println("With --hold the workspace lock is kept until interrupted.")
}

func printCheckHelp() {
	fmt.Println("Usage: extfixture check [--config PATH] [--format human|json] [--strict]")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Valid")
	fmt.Println("  1  Errors found")
	fmt.Println("  2  Warnings found with --strict")
}

func printServeHelp() {
	fmt.Println("Usage: extfixture serve [--config PATH] [--listen ADDR] [workspace-name]")
	fmt.Println("Serve a read-only view of a workspace. Defaults to the newest workspace.")
}

func printWorkspaceNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: extfixture workspace <action> [flags]")
	fmt.Fprintln(w, "Actions: list, prune")
}

// loadConfig loads the configuration and sets up logging from it.
func loadConfig(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, err
	}
	log.Setup(cfg.LogLevel)
	return cfg, log.WithComponent("main"), nil
}

func newWorkspaceManager(cfg *config.Config) (workspace.Manager, error) {
	m, err := workspace.NewFSManager(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// --- setup ---

type setupSummary struct {
	Root         string         `json:"root"`
	Permanent    string         `json:"permanent_dir"`
	Temporary    string         `json:"temporary_dir"`
	Local        resourceResult `json:"local"`
	Remote       resourceResult `json:"remote"`
	Maven        resourceResult `json:"maven"`
	Generated    []string       `json:"generated"`
	Repositories []string       `json:"repositories"`
}

type resourceResult struct {
	Status string `json:"status"`
	Files  int    `json:"files"`
}

func runSetup(args []string) int {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to fixture.yaml")
	jsonOut := fs.Bool("json", false, "Print the setup summary as JSON")
	hold := fs.Bool("hold", false, "Keep the workspace lock until interrupted")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	workspaces, err := newWorkspaceManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lookup := resource.NewFSLookup(os.DirFS(cfg.ResourcesDir))
	f, err := fixture.Allocate(ctx, workspaces, nil, lookup, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer f.Close()

	if err := f.Setup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Fixture setup failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Partial workspace left at %s\n", f.Root())
		return 1
	}

	summary := summarize(f)
	if *jsonOut {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printSummary(summary)
	}

	if *hold {
		logger.Info("holding workspace lock (press Ctrl+C to release)", "root", f.Root())
		<-ctx.Done()
	}
	return 0
}

func summarize(f *fixture.Fixture) setupSummary {
	result := func(kind fixture.Kind) resourceResult {
		r, _ := f.Result(kind)
		return resourceResult{Status: string(r.Status), Files: r.Files}
	}

	s := setupSummary{
		Root:      f.Root(),
		Permanent: f.PermanentDir(),
		Temporary: f.TemporaryDir(),
		Local:     result(fixture.KindLocal),
		Remote:    result(fixture.KindRemote),
		Maven:     result(fixture.KindMaven),
	}
	for _, id := range f.Generated() {
		s.Generated = append(s.Generated, id.String())
	}
	if rm, err := f.Repositories(); err == nil {
		if mgr, ok := rm.(*repository.Manager); ok {
			for _, d := range mgr.Descriptors() {
				s.Repositories = append(s.Repositories, d.String())
			}
		}
	}
	return s
}

func printSummary(s setupSummary) {
	fmt.Printf("Workspace: %s\n", s.Root)
	fmt.Printf("  local:  %s (%d files)\n", s.Local.Status, s.Local.Files)
	fmt.Printf("  remote: %s (%d files)\n", s.Remote.Status, s.Remote.Files)
	fmt.Printf("  maven:  %s (%d files)\n", s.Maven.Status, s.Maven.Files)
	if len(s.Generated) > 0 {
		fmt.Printf("Generated: %s\n", strings.Join(s.Generated, ", "))
	}
	if len(s.Repositories) > 0 {
		fmt.Printf("Repositories: %s\n", strings.Join(s.Repositories, ", "))
	}
}

// --- check ---

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to fixture.yaml")
	format := fs.String("format", "human", "Output format: human or json")
	strict := fs.Bool("strict", false, "Exit 2 when warnings are present")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	workspaces, err := newWorkspaceManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return 1
	}

	lookup := resource.NewFSLookup(os.DirFS(cfg.ResourcesDir))
	result := doctor.New(cfg, lookup, workspaces).Validate(context.Background())

	switch *format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

// --- workspace ---

func runWorkspaceNoun(args []string) int {
	if len(args) < 1 {
		printWorkspaceNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printWorkspaceNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		return runWorkspaceList(actionArgs)
	case "prune":
		return runWorkspacePrune(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown workspace action: %s\n", action)
		return 1
	}
}

type workspaceEntry struct {
	Name    string    `json:"name"`
	Root    string    `json:"root"`
	ModTime time.Time `json:"mod_time"`
	Locked  bool      `json:"locked"`
}

func runWorkspaceList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to fixture.yaml")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}
	workspaces, err := newWorkspaceManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return 1
	}

	entries, err := workspaces.List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list workspaces: %v\n", err)
		return 1
	}

	out := make([]workspaceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, workspaceEntry{
			Name:    e.Layout.Name(),
			Root:    e.Layout.Root,
			ModTime: e.ModTime,
			Locked:  e.Locked,
		})
	}

	if *jsonOut {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(out) == 0 {
		fmt.Println("No workspaces.")
		return 0
	}
	for _, e := range out {
		state := ""
		if e.Locked {
			state = " (in use)"
		}
		fmt.Printf("%s  %s%s\n", e.ModTime.Format(time.RFC3339), e.Name, state)
	}
	return 0
}

func runWorkspacePrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to fixture.yaml")
	olderThan := fs.Duration("older-than", doctor.StaleAfter, "Remove workspaces older than this")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}
	workspaces, err := newWorkspaceManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return 1
	}

	report, err := workspaces.Prune(context.Background(), *olderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		return 1
	}
	fmt.Printf("Removed %d workspace(s), skipped %d in use.\n", report.DeletedDirs, report.SkippedLive)
	return 0
}

// --- serve ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to fixture.yaml")
	listen := fs.String("listen", "", "Listen address (defaults to serve.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 1 {
		printServeHelp()
		return 1
	}

	cfg, logger, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Serve.Listen = *listen
	}

	workspaces, err := newWorkspaceManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout, err := pickWorkspace(ctx, workspaces, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	registry, err := workspaceRepositories(cfg, layout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open repositories: %v\n", err)
		return 1
	}

	var index api.InstalledIndex
	env := environment.Static{Permanent: layout.Permanent, Temporary: layout.Temporary}
	if _, err := os.Stat(installed.IndexPath(env)); err == nil {
		ix, err := installed.OpenIndex(ctx, installed.IndexPath(env))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open installed index: %v\n", err)
			return 1
		}
		defer ix.Close()
		index = ix
	}

	server := api.New(api.Config{Listen: cfg.Serve.Listen, Workspace: layout.Name()}, registry, index, log.WithComponent("api"))
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

// pickWorkspace opens name, or the newest workspace when name is empty.
func pickWorkspace(ctx context.Context, workspaces workspace.Manager, name string) (workspace.Layout, error) {
	if name != "" {
		return workspaces.Open(ctx, name)
	}
	entries, err := workspaces.List(ctx)
	if err != nil {
		return workspace.Layout{}, err
	}
	if len(entries) == 0 {
		return workspace.Layout{}, fmt.Errorf("no workspaces found; run `extfixture setup` first")
	}
	return entries[0].Layout, nil
}

// workspaceRepositories rebuilds the repositories a fixture registered over
// layout, plus the installed local repository.
func workspaceRepositories(cfg *config.Config, layout workspace.Layout, logger *slog.Logger) (*repository.Manager, error) {
	mgr := repository.NewManager(logger)

	core := repository.NewCoreRepository()
	for _, ce := range cfg.CoreExtensions {
		core.AddExtension(ce.ID, ce.Version)
	}
	if err := mgr.Add(core); err != nil {
		return nil, err
	}
	if err := mgr.Add(repository.NewFileRepository(installed.RepositoryID, layout.LocalRepository, logger)); err != nil {
		return nil, err
	}
	if dirHasFiles(layout.Remote) {
		if err := mgr.Add(repository.NewFileRepository(repository.RemoteRepositoryID, layout.Remote, logger)); err != nil {
			return nil, err
		}
	}
	if dirHasFiles(layout.Maven) {
		_, err := mgr.AddRepository(repository.ID{
			ID:   cfg.MavenRepositoryID,
			Type: repository.TypeMaven,
			URI:  repository.FileURI(layout.Maven),
		})
		if err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func dirHasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: extfixture version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("extfixture %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}
