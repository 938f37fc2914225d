package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ttshist/internal/app"
	"ttshist/internal/config"
	"ttshist/internal/history"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config, creates a HistoryApp and answers any pending
// folder reconnection. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "List", "EnableFolder").
func newApp(cmd *cobra.Command, operation string) (*app.HistoryApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	mode, err := app.ParseReconnectMode(reconnectFlag)
	if err != nil {
		return nil, err
	}

	a, err := app.NewHistoryApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	if err := a.ResolveReconnection(cmd.Context(), mode); err != nil {
		a.Fail()
		a.Close()
		return nil, err
	}
	return a, nil
}

var reconnectFlag string

var rootCmd = &cobra.Command{
	Use:          "ttshist",
	Short:        "Text-to-speech history store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Store:         %s %s\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("History Limit: %s\n", humanize.IBytes(uint64(cfg.History.MaxSize)))
		fmt.Printf("Folder Picker: %s %s\n", cfg.Folder.Picker, cfg.Folder.Path)
		fmt.Printf("Console Level: %s\n", cfg.Log.ConsoleLevel)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.List()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No history.")
			return nil
		}

		for _, it := range items {
			audio := humanize.IBytes(uint64(it.SizeBytes))
			if !it.HasAudio() {
				audio = "no audio"
			}
			fmt.Printf("%s  %s  %-10s  %-10s  %s\n",
				it.ID,
				humanize.Time(it.CreatedAt),
				audio,
				it.Settings.Provider,
				truncate(it.Text, 50),
			)
		}
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Add a synthesized clip to history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		audioPath, _ := flags.GetString("audio")
		dryRun, _ := flags.GetBool("dry-run")

		a, err := newApp(cmd, "Add")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(audioPath)

		if dryRun {
			info, err := os.Stat(audioPath)
			if err != nil {
				return fmt.Errorf("reading audio: %w", err)
			}
			evicted := a.Preview(info.Size())
			if len(evicted) == 0 {
				fmt.Println("No entries would be removed.")
			}
			for _, it := range evicted {
				fmt.Printf("Would remove %s (%s)\n", it.ID, humanize.IBytes(uint64(it.SizeBytes)))
			}
			return nil
		}

		settings := history.Settings{}
		settings.Provider, _ = flags.GetString("provider")
		settings.Model, _ = flags.GetString("model")
		settings.Voice, _ = flags.GetString("voice")
		settings.APIKey, _ = flags.GetString("api-key")

		md := &history.Metadata{}
		md.Title, _ = flags.GetString("title")
		md.Tags, _ = flags.GetStringSlice("tag")
		duration, _ := flags.GetDuration("duration")
		md.Duration = duration.Seconds()

		res, err := a.Add(cmd.Context(), args[0], settings, audioPath, md)
		if err != nil {
			a.Fail()
			return err
		}
		printWarnings(res.Warnings)
		if !res.Success {
			a.Fail()
			if res.Error != "" {
				return errors.New(res.Error)
			}
			return fmt.Errorf("entry was not added")
		}

		for _, it := range res.Removed {
			fmt.Printf("Removed %s\n", it.ID)
		}
		fmt.Printf("Added %s (%s)\n", res.Item.ID, humanize.IBytes(uint64(res.Item.SizeBytes)))
		return nil
	},
}

// remove command
var removeCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Remove")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(args[0])

		if err := a.Remove(cmd.Context(), args[0]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Clear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Clear(cmd.Context()); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("History cleared.")
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Info")
		if err != nil {
			return err
		}
		defer a.Close()

		info, st, mode := a.Info()
		fmt.Printf("Backend:   %s\n", mode)
		fmt.Printf("Entries:   %d\n", info.ItemCount)
		fmt.Printf("Used:      %s\n", humanize.IBytes(uint64(info.UsedBytes)))
		fmt.Printf("Available: %s\n", capacity(info.AvailableBytes))
		fmt.Printf("Total:     %s\n", capacity(info.TotalBytes))
		if info.Bounded {
			fmt.Printf("Usage:     %.1f%%\n", info.UsedFraction*100)
		}
		if st.Enabled {
			fmt.Printf("Folder:    %s\n", st.SelectedPath)
		}
		switch {
		case info.Critical():
			fmt.Println("Storage is critically full.")
		case info.NearFull():
			fmt.Println("Storage is approaching its limit.")
		}
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export ID OUT",
	Short: "Write an entry's audio to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Export")
		if err != nil {
			return err
		}
		defer a.Close()
		a.SetParameters(strings.Join(args, " "))

		if err := a.Export(args[0], args[1]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Exported %s to %s\n", args[0], args[1])
		return nil
	},
}

// folder command
var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folder storage",
}

var folderEnableCmd = &cobra.Command{
	Use:   "enable [PATH]",
	Short: "Store history in a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "EnableFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		a.SetParameters(path)

		res := a.EnableFolder(cmd.Context(), path)
		printWarnings(res.Warnings)
		if res.Cancelled {
			fmt.Println(res.Error)
			return nil
		}
		if !res.Success {
			a.Fail()
			return errors.New(res.Error)
		}

		_, st, _ := a.Info()
		fmt.Printf("Folder storage enabled at %s\n", st.SelectedPath)
		if res.Migrated > 0 {
			fmt.Printf("Moved %d entr(y/ies) from local storage.\n", res.Migrated)
		}
		return nil
	},
}

var folderDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Return to local storage (folder files are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "DisableFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DisableFolder(cmd.Context()); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("Folder storage disabled.")
		return nil
	},
}

var folderStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show folder storage state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "FolderStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		_, st, mode := a.Info()
		fmt.Printf("Supported: %t\n", st.Supported)
		fmt.Printf("Enabled:   %t\n", st.Enabled)
		if st.SelectedPath != "" {
			fmt.Printf("Path:      %s\n", st.SelectedPath)
		}
		fmt.Printf("Backend:   %s\n", mode)
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move history between backends",
}

var migrateToLocalCmd = &cobra.Command{
	Use:   "to-local",
	Short: "Copy folder history into local storage and switch to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "MigrateToLocal")
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.MigrateToLocal(cmd.Context())
		if !res.Success {
			a.Fail()
			return errors.New(res.Error)
		}
		fmt.Printf("Copied %d entr(y/ies) to local storage.\n", res.Copied)
		for _, it := range res.Evicted {
			fmt.Printf("Skipped %s (%s): over the local limit\n", it.ID, humanize.IBytes(uint64(it.SizeBytes)))
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload history when the folder changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return a.Watch(ctx, func(items []*history.Item) {
			fmt.Printf("%s  history reloaded: %d entr(y/ies), %s\n",
				time.Now().Format(time.TimeOnly),
				len(items),
				humanize.IBytes(uint64(history.UsedBytes(items))),
			)
		})
	},
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func capacity(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func init() {
	rootCmd.PersistentFlags().StringVar(&reconnectFlag, "reconnect", "ask", "Answer for a folder enabled in a previous session: ask, yes or no")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// folder subcommands
	folderCmd.AddCommand(folderEnableCmd)
	folderCmd.AddCommand(folderDisableCmd)
	folderCmd.AddCommand(folderStatusCmd)

	// migrate subcommands
	migrateCmd.AddCommand(migrateToLocalCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("audio", "", "Path to the synthesized audio file")
	addCmd.MarkFlagRequired("audio")
	addCmd.Flags().String("provider", "", "TTS provider")
	addCmd.Flags().String("model", "", "TTS model")
	addCmd.Flags().String("voice", "", "TTS voice")
	addCmd.Flags().String("api-key", "", "Provider API key (never stored)")
	addCmd.Flags().String("title", "", "Entry title")
	addCmd.Flags().StringSlice("tag", nil, "Entry tag (repeatable)")
	addCmd.Flags().Duration("duration", 0, "Audio duration")
	addCmd.Flags().Bool("dry-run", false, "Only list the entries that would be removed to make space")
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(watchCmd)
}
