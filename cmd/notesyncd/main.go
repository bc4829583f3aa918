package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notewell/notesync/internal/bookmarks"
	"github.com/notewell/notesync/internal/iocoord"
	"github.com/notewell/notesync/internal/lock"
	"github.com/notewell/notesync/internal/orchestrator"
	"github.com/notewell/notesync/internal/reconcile"
	"github.com/notewell/notesync/internal/syncconfig"
	"github.com/notewell/notesync/internal/utils"
	"github.com/notewell/notesync/internal/watch"
)

var (
	home, _          = os.UserHomeDir()
	defaultLocalDir  = filepath.Join(home, "Notes")
	defaultCloudDir  = filepath.Join(home, ".notesync", "cloud")
	defaultConfigDir = filepath.Join(home, ".notesync")
)

var rootCmd = &cobra.Command{
	Use:   "notesyncd",
	Short: "Two-way sync daemon between a local notes directory and a cloud document container",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		showBanner()
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("local-dir", "l", defaultLocalDir, "Local notes directory")
	rootCmd.Flags().StringP("cloud-dir", "c", defaultCloudDir, "Cloud document container directory")
	rootCmd.Flags().StringP("config-dir", "d", defaultConfigDir, "Directory for the daemon's config and bookmark database")
}

func main() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	logDir := filepath.Join(defaultConfigDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(filepath.Join(logDir, "notesyncd.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logInterceptor := utils.NewLogInterceptor(logFile)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	viper.BindPFlag("local_dir", cmd.Flags().Lookup("local-dir"))
	viper.BindPFlag("cloud_dir", cmd.Flags().Lookup("cloud-dir"))
	viper.BindPFlag("config_dir", cmd.Flags().Lookup("config-dir"))

	viper.SetEnvPrefix("NOTESYNC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return nil
}

func run(ctx context.Context) error {
	localDir := viper.GetString("local_dir")
	cloudDir := viper.GetString("cloud_dir")
	configDir := viper.GetString("config_dir")

	instanceLock := lock.New(localDir)
	if err := instanceLock.Acquire(); err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	defer instanceLock.Release()

	cfg, err := syncconfig.Open(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if err := cfg.SetDirs(localDir, cloudDir); err != nil {
		return fmt.Errorf("persist directories: %w", err)
	}

	store, err := bookmarks.Open(filepath.Join(configDir, "bookmarks.db"), localDir)
	if err != nil {
		return fmt.Errorf("open bookmarks store: %w", err)
	}
	defer store.Close()

	localFS := iocoord.NewLocalFS(localDir)
	reconciler := reconcile.NewReconciler(cfg.IsInitialSync())
	lifecycle := orchestrator.NewOSLifecycleSignal()

	orch := orchestrator.New(reconciler, localFS, cfg, store, lifecycle)

	cloudWatcher := watch.NewFSCloudWatcher(cloudDir, orch)
	localWatcher := watch.NewFSLocalWatcher(localDir, orch)
	orch.AttachWatchers(localWatcher, cloudWatcher, cloudWatcher)

	if err := orch.Start(); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer orch.Stop()

	slog.Info("notesyncd", "op", "ready", "local_dir", localDir, "cloud_dir", cloudDir)

	<-ctx.Done()
	slog.Info("notesyncd", "op", "shutdown")
	return nil
}

func showBanner() {
	color.New(color.FgHiCyan, color.Bold).Println("notesyncd — local notes <-> cloud container sync")
}
