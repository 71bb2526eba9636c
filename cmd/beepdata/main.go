package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thetechidea/beepdatasources/pkg/config"
	"github.com/thetechidea/beepdatasources/pkg/datasource"
	"github.com/thetechidea/beepdatasources/pkg/logger"
	"github.com/thetechidea/beepdatasources/pkg/observability"
)

var version = "0.1.0"

// envPrefix prefixes environment overrides, e.g. BEEP_DSN or BEEP_PAGING_MAX_PAGE_SIZE
const envPrefix = "BEEP"

// app holds the state shared by all subcommands
type app struct {
	v       *viper.Viper
	cfgFile string
	timeout time.Duration
	trace   bool
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "beepdata",
		Short: "beepdata - query relational data sources",
		Long: `beepdata discovers entities in a relational database and reads them as
filtered streams or pages, or exports them as JSON or Avro.

Connection settings come from a YAML config file, flags or BEEP_* environment
variables, in increasing order of precedence for flags.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "Path to data source YAML config")
	pf.String("name", "beepdata", "Data source name")
	pf.String("dialect", "", "SQL dialect (postgres, mysql, sqlite, sqlserver, snowflake, ...)")
	pf.String("driver", "", "database/sql driver name, overrides the dialect default")
	pf.String("dsn", "", "Driver connection string")
	pf.String("schema", "", "Schema to discover entities in")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.DurationVar(&a.timeout, "timeout", 5*time.Minute, "Command timeout")
	pf.BoolVar(&a.trace, "trace", false, "Export spans to stderr")

	for key, flag := range map[string]string{
		"name":          "name",
		"dialect":       "dialect",
		"driver":        "driver",
		"dsn":           "dsn",
		"schema":        "schema",
		"logging.level": "log-level",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "beepdata v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		newListCmd(),
		a.newEntitiesCmd(),
		a.newDescribeCmd(),
		a.newQueryCmd(),
		a.newSQLCmd(),
		a.newExportCmd(),
	)
	return root
}

// loadConfig merges the config file, bound flags and environment into a
// validated DataSourceConfig.
func (a *app) loadConfig() (*config.DataSourceConfig, error) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", a.cfgFile, err)
		}
	}

	cfg := &config.DataSourceConfig{}
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.DSN = os.ExpandEnv(cfg.DSN)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// run opens the data source, applies the timeout and optional tracing, and
// calls fn.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, ds *datasource.RDBMSDataSource) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	_ = logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	log := logger.Get().With(zap.String("component", "beepdata-cli"))

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	if a.trace || cfg.Observability.EnableTracing {
		if err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:    "beepdata",
			ServiceVersion: version,
			SamplingRate:   1,
			Output:         cmd.ErrOrStderr(),
		}); err != nil {
			return err
		}
		defer func() {
			if err := observability.Shutdown(context.Background()); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	ds, err := datasource.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("failed to close data source", zap.Error(err))
		}
	}()

	start := time.Now()
	err = fn(ctx, ds)
	log.Debug("command finished",
		zap.String("command", cmd.Name()),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return err
}
