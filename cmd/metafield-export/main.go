// Command metafield-export dumps the metafields of a store's objects into a
// CSV (or XLSX) file.
//
//	metafield-export metafields.csv -c "Product Variant" -v
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/metafield-export/pkg/client"
	"github.com/Sternrassler/metafield-export/pkg/config"
	"github.com/Sternrassler/metafield-export/pkg/export"
	"github.com/Sternrassler/metafield-export/pkg/logging"
	"github.com/Sternrassler/metafield-export/pkg/metrics"
	"github.com/Sternrassler/metafield-export/pkg/pagination"
	"github.com/Sternrassler/metafield-export/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultClasses are exported when -c is not given.
const DefaultClasses = "CustomCollection SmartCollection Product Variant"

type options struct {
	classes    string
	verbose    int
	quiet      int
	configPath string
	format     string
	jsonLogs   bool

	// baseURL overrides the store API base; used against mock stores.
	baseURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "metafield-export <CSV_PATH>",
		Short: "export store metafields to a CSV file",
		Long: "Collects the metafields of every object of the given classes and writes\n" +
			"them to CSV_PATH, one row per metafield. Credentials are read from the\n" +
			"[main] section of the config file.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, cmd.ErrOrStderr())
		},
	}

	addFlags(cmd.Flags(), opts)
	return cmd
}

func addFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVarP(&opts.classes, "classes", "c", DefaultClasses, "space-separated object classes to export")
	fs.CountVarP(&opts.verbose, "verbose", "v", "log more; repeatable")
	fs.CountVarP(&opts.quiet, "quiet", "q", "log less; repeatable")
	fs.StringVar(&opts.configPath, "config", "config.ini", "path to the INI config file")
	fs.StringVar(&opts.format, "format", string(export.FormatCSV), "output format: csv or xlsx")
	fs.BoolVar(&opts.jsonLogs, "json-logs", false, "write logs as JSON instead of console text")
	fs.StringVar(&opts.baseURL, "base-url", "", "override the Admin API base URL")
	_ = fs.MarkHidden("base-url")
}

func run(ctx context.Context, outputPath string, opts *options, logOutput io.Writer) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LevelFromVerbosity(logCfg.Level, opts.quiet, opts.verbose)
	logCfg.Pretty = !opts.jsonLogs
	logCfg.Output = logOutput
	logging.Setup(logCfg)
	logger := logging.NewLogger("cli")

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	resources, err := client.ResolveClasses(strings.Fields(opts.classes))
	if err != nil {
		return err
	}
	if len(resources) == 0 {
		return fmt.Errorf("no object classes given")
	}

	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	var store ratelimit.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Debug().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
		store = ratelimit.NewRedisStore(redisClient, cfg.Store)
	}

	tracker := ratelimit.NewTracker(store, logging.NewLogger("ratelimit"))
	if _, err := tracker.Resume(ctx, ratelimit.DrainTime); err != nil {
		logger.Warn().Err(err).Msg("Failed to load previous call limit state")
	}

	session, err := client.New(client.Config{
		Store:       cfg.Store,
		APIKey:      cfg.APIKey,
		Password:    cfg.Password,
		APIVersion:  cfg.APIVersion,
		PageSize:    cfg.PageSize,
		Timeout:     cfg.Timeout,
		BaseURL:     opts.baseURL,
		RateLimiter: tracker,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	exec := client.NewExecutor(logging.NewLogger("executor"), nil)
	collector := pagination.NewCollector(session, exec, logging.NewLogger("collector"))

	records, err := collector.CollectAll(ctx, resources)
	if err != nil {
		return err
	}

	if err := export.WriteFile(outputPath, format, records); err != nil {
		return err
	}

	logger.Info().
		Str("path", outputPath).
		Str("format", string(format)).
		Int("records", len(records)).
		Msg("Export written")

	return nil
}
