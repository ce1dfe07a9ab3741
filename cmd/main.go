package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kiran"
	"kiran/config"
	"kiran/internal/database"
	"kiran/internal/handlers"
	"kiran/internal/metrics"
	"kiran/lib/translation"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "kiran",
		Short:         "Telegram bot served from a long polling loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := config.ReadFile(configPath); err != nil {
				return err
			}
			setupLogging()
			translation.Configure(config.GetString("locales_dir"), config.Lang())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a configuration file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	root.PersistentFlags().String("log-format", "text", "Log format: text or json")
	root.PersistentFlags().String("db-path", "/app/data/bot.db", "Path to the sqlite database")

	root.AddCommand(runCmd(), syncCommandsCmd(), resetCommandsCmd())
	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve updates until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
	cmd.Flags().Int("metrics-port", 9090, "Port of the metrics and health endpoint")
	cmd.Flags().Bool("sync-commands", true, "Push the command menu on start")
	return cmd
}

func syncCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-commands",
		Short: "Push the command menu once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBot(cmd.Context(), func(ctx context.Context, bot *kiran.Bot) error {
				report, err := bot.SyncCommands(ctx)
				if report != nil {
					log.WithFields(log.Fields{
						"pushed":  len(report.Pushed),
						"removed": len(report.Removed),
						"failed":  len(report.Failed),
					}).Info("Command menu synced")
				}
				return err
			})
		},
	}
}

func resetCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-commands",
		Short: "Remove every command menu this bot pushed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBot(cmd.Context(), func(ctx context.Context, bot *kiran.Bot) error {
				report, err := bot.ResetCommands(ctx)
				if report != nil {
					log.WithField("removed", len(report.Removed)).Info("Command menu reset")
				}
				return err
			})
		},
	}
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if config.GetString("log_format") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.Debug("Starting telegram bot...")
}

// newBot opens the bot with the built-in commands registered.
func newBot(store *database.Store, m *metrics.BotMetrics, started time.Time) (*kiran.Bot, error) {
	cfg, err := config.Bot()
	if err != nil {
		return nil, err
	}
	bot, err := kiran.New(cfg,
		kiran.WithStore(store),
		kiran.WithMetrics(m),
		kiran.WithLogger(log.StandardLogger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot")
	}

	var stats handlers.Stats
	if m != nil {
		stats = func() float64 { return metrics.GetMetricValue(m.MessagesHandled) }
	}
	if _, err := handlers.Register(bot, stats, started); err != nil {
		bot.Close()
		return nil, err
	}
	return bot, nil
}

func withBot(ctx context.Context, fn func(context.Context, *kiran.Bot) error) error {
	store, err := database.Open(ctx, config.GetString("db_path"), log.StandardLogger())
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer store.Close()

	bot, err := newBot(store, nil, time.Now())
	if err != nil {
		return err
	}
	defer bot.Close()
	return fn(ctx, bot)
}

func run(ctx context.Context) error {
	store, err := database.Open(ctx, config.GetString("db_path"), log.StandardLogger())
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer, log.StandardLogger())
	m.Load(ctx, store)

	bot, err := newBot(store, m, time.Now())
	if err != nil {
		return err
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Every(config.GetDuration("metrics_flush_interval")).WaitForSchedule().Do(func() {
		if err := m.Save(ctx, store); err != nil {
			log.WithError(err).Warn("Failed to save metrics")
		}
	})
	if err != nil {
		bot.Close()
		return errors.Wrap(err, "failed to schedule metrics flush")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	srv := launchMetricsAndHealthServer(config.GetInt("metrics_port"))
	defer shutdownServer(srv)

	runErr := bot.Run(ctx)

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Save(saveCtx, store); err != nil {
		log.WithError(err).Error("Failed to save metrics")
	} else {
		log.Info("Metrics saved, shutting down...")
	}
	return runErr
}
