package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/spoq-dev/spoq/internal/backend"
	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/config"
	"github.com/spoq-dev/spoq/internal/debugbus"
	"github.com/spoq-dev/spoq/internal/owner"
	"github.com/spoq-dev/spoq/internal/permission"
	"github.com/spoq-dev/spoq/internal/stream"
	"github.com/spoq-dev/spoq/internal/update"
)

// version tracks the client's compatibility version reported to the backend.
const version = "0.1.0"

// updateDownloadTimeout bounds the download phase; install itself runs
// with no timeout since it must be safe to retry after a rollback.
const updateDownloadTimeout = 300 * time.Second

// options holds the CLI flags spoq accepts. Unlike the Claude Code
// compatibility surface this grew from, there is no flag for an
// unimplemented command; Verbose is the one field no code reads.
type options struct {
	// ConfigPath overrides the default ~/.spoq/config.json location.
	ConfigPath string
	// SettingSources limits which of user/project/local settings load.
	SettingSources []string
	// Settings provides a path or inline JSON settings override.
	Settings string
	// PermissionMode selects the Policy used to auto-answer tool
	// permission requests.
	PermissionMode string
	// Conversation starts the first thread as a Conversation thread
	// instead of a Programming thread.
	Conversation bool
	// PlanMode starts Programming threads in plan mode.
	PlanMode bool
	// DashboardURL, when set, forwards debug events to a running
	// spoq-dashboard instance's /ingest endpoint.
	DashboardURL string
	// Verbose is stored on the TUI model; the footer and other views
	// render the same with or without it.
	Verbose bool
	// Version prints the CLI version and exits.
	Version bool
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "spoq [prompt]",
		Short: "spoq is an interactive terminal client for an AI conversation backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Printf("spoq %s\n", version)
				return nil
			}
			return runRoot(opts, args)
		},
	}
	rootCmd.Args = cobra.ArbitraryArgs
	applyFlags(rootCmd.Flags(), opts)

	rootCmd.AddCommand(doctorCommand())
	rootCmd.AddCommand(updateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.ConfigPath, "config", "", "path to backend config.json (default ~/.spoq/config.json)")
	flags.StringSliceVar(&opts.SettingSources, "settings-sources", nil, "restrict settings sources (user, project, local)")
	flags.StringVar(&opts.Settings, "settings", "", "path or inline JSON settings override")
	flags.StringVar(&opts.PermissionMode, "permission-mode", string(permission.ModeDefault), "permission policy: default, acceptEdits, dontAsk, bypassPermissions, plan")
	flags.BoolVar(&opts.Conversation, "conversation", false, "start in conversation mode instead of programming mode")
	flags.BoolVar(&opts.PlanMode, "plan", false, "start programming threads in plan mode")
	flags.StringVar(&opts.DashboardURL, "dashboard", "", "forward debug events to a spoq-dashboard /ingest endpoint")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose status output")
	flags.BoolVar(&opts.Version, "version", false, "print the version and exit")
}

func doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the health of the backend config and update state",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.BackendConfigPath()
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("backend config missing at %s", path)
			}
			if mode := info.Mode().Perm(); mode&0o077 != 0 {
				return fmt.Errorf("backend config permissions too open: %s", mode)
			}
			if _, err := config.LoadBackendConfig(path); err != nil {
				return fmt.Errorf("backend config invalid: %w", err)
			}
			fmt.Fprintf(os.Stdout, "OK: backend config %s\n", path)

			hasBackup, err := update.HasBackup()
			if err == nil && hasBackup {
				fmt.Fprintln(os.Stdout, "NOTE: an update backup is present; a prior install may not have cleaned up")
			}
			return nil
		},
	}
}

func updateCommand() *cobra.Command {
	var targetVersion string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download and install the latest spoq build",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadBackendConfig("")
			if err != nil {
				return fmt.Errorf("load backend config: %w", err)
			}
			platform, err := update.DetectPlatform()
			if err != nil {
				return err
			}
			downloader := update.NewDownloader(cfg.DownloadBaseURL)

			ctx, cancel := context.WithTimeout(context.Background(), updateDownloadTimeout)
			defer cancel()

			result, err := downloader.Download(ctx, platform, targetVersion)
			if err != nil {
				return fmt.Errorf("download update: %w", err)
			}

			installResult, err := update.Install(result.FilePath, result.Version, update.DefaultInstallConfig())
			if err != nil {
				return fmt.Errorf("install update: %w", err)
			}
			fmt.Fprintf(os.Stdout, "installed spoq %s at %s\n", result.Version, installResult.BinaryPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetVersion, "target-version", "", "specific version to install (default: latest)")
	return cmd
}

func runRoot(opts *options, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	settings, err := config.LoadClaudeSettings(cwd, opts.SettingSources, opts.Settings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	backendCfg, err := config.LoadBackendConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load backend config: %w", err)
	}

	client := backend.NewClient(backendCfg.StreamBaseURL, backendCfg.APIKey)

	policyMode := permission.Mode(opts.PermissionMode)
	if policyMode == "" {
		policyMode = permission.ModeDefault
	}
	if opts.PlanMode {
		policyMode = permission.ModePlan
	}

	var debugSink stream.DebugSink
	if opts.DashboardURL != "" {
		debugSink = debugbus.NewHTTPForwarder(opts.DashboardURL)
	}

	c := cache.New()
	o := owner.New(c, client, debugSink, client, permission.Policy{Mode: policyMode})

	kind := cache.ThreadProgramming
	if opts.Conversation {
		kind = cache.ThreadConversation
	}

	if !term.IsTerminal(0) || !term.IsTerminal(1) {
		return fmt.Errorf("spoq requires a TTY; use the backend's API directly for scripting")
	}

	initialPrompt := strings.TrimSpace(strings.Join(args, " "))
	return runInteractiveTUI(o, c, kind, opts.PlanMode, settings, initialPrompt, opts.Verbose)
}
