package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"pilotd/internal/config"
	"pilotd/internal/db"
	"pilotd/internal/modelmgr"
	"pilotd/internal/nlu"
	"pilotd/pkg/bus"
	pkgdb "pilotd/pkg/db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pilotctl",
		Short:         "Utility for managing the pilotd assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newModelsCommand())
	return cmd
}

func loadConfig(ctx context.Context) (config.Config, error) {
	_ = godotenv.Load()
	return config.Load(ctx)
}

func connect(ctx context.Context) (config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return config.Config{}, nil, err
	}
	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, database, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			if err := db.Migrate(ctx, database); err != nil {
				return err
			}

			pool, err := pkgdb.Open(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pkgdb.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert default roles, grants, and the action catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			if err := db.Seed(ctx, database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
			return nil
		},
	}
}

func newManager(ctx context.Context, cfg config.Config, database *gorm.DB, b *bus.Bus) (*modelmgr.Manager, error) {
	client, err := nlu.NewClient(nlu.Settings{
		BaseURL:      cfg.OllamaURL,
		Model:        cfg.ActiveModel,
		Enabled:      cfg.NLUEnabled,
		ProbeTimeout: cfg.ProbeTimeout,
		GenTimeout:   cfg.GenTimeout,
	}, zerolog.New(os.Stderr))
	if err != nil {
		return nil, err
	}
	return modelmgr.New(database, client, b, zerolog.New(os.Stderr))
}

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Model catalog operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newModelsListCommand())
	cmd.AddCommand(newModelsPullCommand())
	cmd.AddCommand(newModelsActivateCommand())
	cmd.AddCommand(newModelsRemoveCommand())
	return cmd
}

func newModelsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog entries and their download state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			mgr, err := newManager(ctx, cfg, database, nil)
			if err != nil {
				return err
			}
			if _, err := mgr.Sync(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: sync failed: %v\n", err)
			}

			records, err := mgr.List(ctx)
			if err != nil {
				return err
			}
			for _, rec := range records {
				active := " "
				if rec.IsActive {
					active = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-40s %-12s %3d%%\n", active, rec.ModelName, rec.Status, rec.DownloadProgress)
			}
			return nil
		},
	}
}

func newModelsPullCommand() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			var eventBus *bus.Bus
			if wait {
				eventBus, err = bus.New(cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("bus connection required for --wait: %w", err)
				}
				defer eventBus.Close()
			}

			mgr, err := newManager(ctx, cfg, database, eventBus)
			if err != nil {
				return err
			}

			const operator = "pilotctl"
			if _, err := mgr.Pull(ctx, args[0], operator); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "download of %s started\n", args[0])

			if !wait {
				return nil
			}
			var evt modelmgr.CompletionEvent
			if err := eventBus.SubscribeOnce(ctx, modelmgr.DownloadSubject(operator), &evt); err != nil {
				return err
			}
			if evt.Status != "success" {
				return fmt.Errorf("download failed: %s", evt.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "download of %s complete\n", evt.ModelName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the download finishes")
	return cmd
}

func newModelsActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <model>",
		Short: "Mark a model as the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			mgr, err := newManager(ctx, cfg, database, nil)
			if err != nil {
				return err
			}
			if _, err := mgr.Activate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now active\n", args[0])
			return nil
		},
	}
}

func newModelsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <model>",
		Short: "Delete a model from the service and the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, database, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(database) }()

			mgr, err := newManager(ctx, cfg, database, nil)
			if err != nil {
				return err
			}
			if err := mgr.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
			return nil
		},
	}
}
