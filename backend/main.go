package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meddispense/m/internal/api"
	"meddispense/m/internal/config"
	"meddispense/m/internal/database"
	"meddispense/m/internal/dispense"
	"meddispense/m/internal/logging"
	"meddispense/m/internal/notify"
	"meddispense/m/internal/robot"
	"meddispense/m/internal/seed"
	"meddispense/m/internal/store"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "dispenser",
		Short:         "Robot-assisted medication dispensing station",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			var err error
			logger, err = logging.New(cfg.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: serve,
	}

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the web form and dispensing workflow", RunE: serve},
		&cobra.Command{Use: "seed", Short: "Create the schema and seed the catalog", RunE: seedOnly},
		logCommand(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("dispenser: %v", err)
	}
}

// openDB connects and seeds; the catalog is installed only on an empty table.
func openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	entries := seed.Starter
	if cfg.CatalogCSV != "" {
		loaded, err := seed.LoadCSV(cfg.CatalogCSV, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		entries = loaded
	}
	if err := seed.Catalog(ctx, db, logger, entries); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	robotCfg, err := robot.LoadConfig(cfg.RobotConfig)
	if err != nil {
		return err
	}
	if cfg.RobotAddress != "" {
		robotCfg.Address = cfg.RobotAddress
	}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := notify.NewMQTT(cfg.MQTTBroker, cfg.MQTTTopic, logger)
		if err != nil {
			return err
		}
		publisher = mqttPub
	}
	defer publisher.Close()

	catalog := store.NewCatalog(db)
	dispenseLog := store.NewDispenseLog(db)
	workflow := dispense.New(catalog, dispenseLog, publisher, robot.TCPDialer(cfg.RobotTimeout), robotCfg, logger)

	handler, err := api.New(workflow, catalog, dispenseLog, api.Options{
		Secret:               cfg.Secret,
		OperatorUser:         cfg.OperatorUser,
		OperatorPasswordHash: cfg.OperatorPasswordHash,
	}, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispenser server starting",
			zap.String("addr", srv.Addr),
			zap.String("robot", robotCfg.Address),
			zap.String("database", cfg.DatabaseDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// A batch in progress keeps the arm busy; give it time to park.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RobotTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seedOnly(cmd *cobra.Command, args []string) error {
	db, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	meds, err := store.NewCatalog(db).List(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog holds %d medications\n", len(meds))
	return nil
}

func logCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the most recent dispense events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := store.NewDispenseLog(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMEDICATION\tDOSAGE\tDISPENSED (UTC)")
			for _, ev := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.ID, ev.MedicationName, ev.Dosage, ev.DispensedAt.Format(store.TimestampLayout))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}
