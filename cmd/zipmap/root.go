package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ryanm101/zipmap/internal/config"
	"github.com/ryanm101/zipmap/internal/db"
	"github.com/ryanm101/zipmap/internal/executor"
	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/logging"
	"github.com/ryanm101/zipmap/internal/match"
	"github.com/ryanm101/zipmap/internal/session"
)

var (
	sourceFolder string
	targetFolder string
	configPath   string
	logLevel     string
	logFormat    string
)

func init() {
	rootCmd.Flags().StringVarP(&sourceFolder, "source-folder", "s", "", "Folder holding the ZIP archives")
	rootCmd.Flags().StringVarP(&targetFolder, "target-folder", "t", "", "Folder holding the destination folders")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (env ZIPMAP_CONFIG)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

var rootCmd = &cobra.Command{
	Use:   "zipmap",
	Short: "Map ZIP archives onto destination folders and extract them",
	Long: `zipmap lists the ZIP archives in a source folder and the folders in a
target folder, guesses which archive belongs where by comparing archive
contents with what is already on disk, and lets you adjust the mapping
interactively before extracting. Type 'h' at the prompt for commands.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}
		logging.Setup(logging.Config{
			Format: cfg.Logging.Format,
			Level:  cfg.Logging.Level,
			Output: cmd.ErrOrStderr(),
		})

		if sourceFolder == "" {
			sourceFolder = cfg.SourceDir
		}
		if targetFolder == "" {
			targetFolder = cfg.TargetDir
		}

		ctx := cmd.Context()

		database, err := db.Open(ctx, db.MemoryPath)
		if err != nil {
			return fmt.Errorf("failed to open score index: %w", err)
		}
		defer func() { _ = database.Close() }()
		logging.Debug("opened score index", "path", database.Path())

		// Every path handed to the filesystem is absolute.
		fs := osfs.New("/")

		index, err := match.NewIndex(database, fs, cfg.GetNameCacheSize())
		if err != nil {
			return err
		}

		var execOpts []executor.Option
		if term.IsTerminal(int(os.Stdout.Fd())) { // #nosec G115
			execOpts = append(execOpts, executor.WithProgress(os.Stderr))
		}

		s := session.New(
			inventory.NewScanner(fs, cfg.GetArchiveSuffix()),
			index,
			executor.New(fs, execOpts...),
			os.Stdin,
			os.Stdout,
			session.WithPathResolver(filepath.Abs),
		)

		logging.Debug("starting session", "source", sourceFolder, "target", targetFolder,
			"suffix", cfg.GetArchiveSuffix())
		return s.Run(ctx, sourceFolder, targetFolder)
	},
}
