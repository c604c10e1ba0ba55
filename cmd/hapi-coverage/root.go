package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/hapi-coverage/pkg/client"
	"github.com/Sternrassler/hapi-coverage/pkg/logging"
	"github.com/Sternrassler/hapi-coverage/pkg/metrics"
	"github.com/Sternrassler/hapi-coverage/pkg/pagination"
	"github.com/Sternrassler/hapi-coverage/pkg/report"
	"github.com/Sternrassler/hapi-coverage/pkg/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

// options holds every flag of the root command.
type options struct {
	baseURL       string
	appIdentifier string
	themes        []string
	limit         int
	dateMin       string
	dateMax       string
	align         string
	summary       bool
	timeout       time.Duration
	redisAddr     string
	storeTTL      time.Duration
	metricsFile   string
	logLevel      string
	logPretty     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "hapi-coverage",
		Short: "Report HDX HAPI dataset coverage per theme as Markdown tables",
		Long: "hapi-coverage pages through the coverage of every theme on the HDX " +
			"Humanitarian API, looks up the datasets behind each country and prints " +
			"one Markdown table per theme.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts, "")
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.redisAddr, "redis-addr", getEnv("REDIS_URL", ""), "Redis address for storing reports (empty disables the store)")
	f.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", string(logging.LevelInfo)), "Log level: debug, info, warn, error")
	f.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable console logs instead of JSON")

	f = cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", getEnv("HAPI_BASE_URL", client.DefaultBaseURL), "HAPI base URL")
	f.StringVar(&opts.appIdentifier, "app-identifier", getEnv("HAPI_APP_IDENTIFIER", client.DefaultAppIdentifier), "HAPI app_identifier token")
	f.StringSliceVar(&opts.themes, "themes", append([]string(nil), report.DefaultThemes...), "Themes to report, in order")
	f.IntVar(&opts.limit, "limit", pagination.DefaultLimit, "Records per page")
	f.StringVar(&opts.dateMin, "update-date-min", client.DefaultUpdateDateMin, "Lower bound of resource update dates")
	f.StringVar(&opts.dateMax, "update-date-max", client.DefaultUpdateDateMax, "Upper bound of resource update dates")
	f.StringVar(&opts.align, "align", report.DefaultConfig().Align, "Table alignment: left, right, center, none")
	f.BoolVar(&opts.summary, "summary", false, "Print a country x theme coverage matrix after the theme tables")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (0 waits forever)")
	f.DurationVar(&opts.storeTTL, "store-ttl", 0, "Expiry of stored reports (0 keeps them)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the run ends")

	cmd.AddCommand(newShowCmd(opts), newRunsCmd(opts), newVersionCmd())

	return cmd
}

// setupLogging configures the global logger. runID is stamped on every line when set.
func setupLogging(w io.Writer, opts *options, runID string) error {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: opts.logPretty,
		Output: w,
		RunID:  runID,
	})
	return nil
}

func runReport(ctx context.Context, stdout, stderr io.Writer, opts *options) error {
	runID := uuid.NewString()
	if err := setupLogging(stderr, opts, runID); err != nil {
		return err
	}
	logger := logging.NewLogger("cli")

	if opts.metricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(opts.metricsFile); werr != nil {
				logger.Warn().Err(werr).Str("path", opts.metricsFile).Msg("Failed to write metrics")
			}
		}()
	}

	hapiClient, err := client.New(client.Config{
		BaseURL:       opts.baseURL,
		AppIdentifier: opts.appIdentifier,
		UserAgent:     "hapi-coverage/" + version,
		Timeout:       opts.timeout,
	})
	if err != nil {
		return fmt.Errorf("create HAPI client: %w", err)
	}

	fetcher, err := pagination.NewFetcher(hapiClient, pagination.Config{
		Limit:    opts.limit,
		Progress: stdout,
	})
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	var sinks []report.Sink
	if opts.redisAddr != "" {
		redisClient, err := connectRedis(ctx, opts.redisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		reportStore, err := store.New(redisClient, runID, opts.storeTTL, log.Logger)
		if err != nil {
			return fmt.Errorf("create report store: %w", err)
		}
		sinks = append(sinks, reportStore)
		logger.Info().Str("redis", opts.redisAddr).Msg("Storing reports in Redis")
	}

	driver, err := report.NewDriver(hapiClient, fetcher, report.Config{
		Themes: opts.themes,
		Window: client.DateWindow{Min: opts.dateMin, Max: opts.dateMax},
		Align:  opts.align,
	}, log.Logger, sinks...)
	if err != nil {
		return fmt.Errorf("create report driver: %w", err)
	}

	start := time.Now()
	logger.Info().
		Strs("themes", opts.themes).
		Int("limit", opts.limit).
		Str("base_url", opts.baseURL).
		Msg("Starting coverage report")

	reports, err := driver.Run(ctx, stdout)
	if err != nil {
		return err
	}

	if opts.summary {
		if err := driver.WriteSummary(stdout); err != nil {
			return err
		}
	}

	logger.Info().
		Int("themes", len(reports)).
		Int("countries", len(driver.Coverage().AllCountries())).
		Dur("duration", time.Since(start)).
		Msg("Coverage report complete")

	return nil
}

func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return redisClient, nil
}
