// Package cli holds the start-up and exit handling shared by the commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"scoreloop/internal/config"
	"scoreloop/internal/logging"
	"scoreloop/internal/observability"
	"scoreloop/internal/pipeline"
	chstore "scoreloop/internal/storage/clickhouse"
	"scoreloop/internal/storage/migrations"
	pgstore "scoreloop/internal/storage/postgres"
)

// Exit codes.
const (
	ExitPass   = 0
	ExitFail   = 1
	ExitConfig = 2
)

// errConfig marks start-up failures that exit with ExitConfig.
var errConfig = errors.New("configuration error")

// Flags are the options every command accepts.
type Flags struct {
	ConfigPath      string
	MetricsTextfile string
}

// Register adds the common flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", os.Getenv("SCORELOOP_CONFIG"), "Path to YAML config (optional)")
	fs.StringVar(&f.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
}

// Env is a started command: configuration, logger, metrics and runner.
type Env struct {
	Config  *config.Config
	Runner  *pipeline.Runner
	Metrics *observability.Metrics
	Log     zerolog.Logger

	textfile string
	closers  []func()
}

// Option configures Setup.
type Option func(*setup)

type setup struct {
	mirrors bool
}

// WithMirrors connects the database mirrors configured by DSN.
func WithMirrors() Option {
	return func(s *setup) {
		s.mirrors = true
	}
}

// Setup loads configuration and builds the runner for tool.
func Setup(ctx context.Context, tool string, f Flags, opts ...Option) (*Env, error) {
	var st setup
	for _, opt := range opts {
		opt(&st)
	}

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", errConfig, err)
	}

	env := &Env{
		Config:   cfg,
		Metrics:  observability.NewMetrics(""),
		Log:      logging.For(tool),
		textfile: f.MetricsTextfile,
	}
	if env.textfile == "" {
		env.textfile = cfg.Metrics.Textfile
	}

	runOpts := []pipeline.Option{
		pipeline.WithMetrics(env.Metrics),
		pipeline.WithLogger(env.Log),
	}
	if st.mirrors {
		runOpts = append(runOpts, env.connectMirrors(ctx)...)
	}
	env.Runner = pipeline.NewRunner(cfg, runOpts...)
	return env, nil
}

// connectMirrors opens each configured mirror. A mirror that cannot be
// reached is logged and left out.
func (e *Env) connectMirrors(ctx context.Context) []pipeline.Option {
	var opts []pipeline.Option
	if dsn := e.Config.Mirror.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err == nil {
			err = migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			e.Log.Error().Err(err).Msg("postgres mirror disabled")
		} else {
			e.closers = append(e.closers, pool.Close)
			opts = append(opts, pipeline.WithSnapshotMirror(pgstore.NewSnapshotMirror(pool)))
		}
	}
	if dsn := e.Config.Mirror.ClickHouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			e.Log.Error().Err(err).Msg("clickhouse mirror disabled")
		} else {
			e.closers = append(e.closers, func() { _ = conn.Close() })
			opts = append(opts, pipeline.WithTrainableMirror(chstore.NewTrainableStore(conn)))
		}
	}
	return opts
}

// Close releases mirror connections.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Finish prints the summary, flushes metrics and returns the exit code.
func (e *Env) Finish(w io.Writer, s *pipeline.Summary, err error) int {
	if s != nil {
		s.Print(w)
	}
	if e != nil {
		if werr := e.Metrics.WriteTextfile(e.textfile); werr != nil {
			e.Log.Error().Err(werr).Msg("metrics textfile not written")
		}
	}
	return ExitCode(w, s, err)
}

// ExitCode maps a run result to a process exit code. Missing or invalid
// configuration is 2; any other error or a failed summary is 1.
func ExitCode(w io.Writer, s *pipeline.Summary, err error) int {
	switch {
	case err == nil && s != nil:
		return s.ExitCode()
	case err == nil:
		return ExitPass
	case errors.Is(err, errConfig), errors.Is(err, config.ErrPolicyNotSelected):
		fmt.Fprintf(w, "FAIL: %v\n", err)
		return ExitConfig
	}
	if s == nil || s.Passed() {
		fmt.Fprintf(w, "FAIL: %v\n", err)
	}
	return ExitFail
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Main parses the common flags plus any registered by extra, starts the
// environment and calls run. It returns the process exit code.
func Main(tool string, args []string, extra func(fs *flag.FlagSet), run func(ctx context.Context, env *Env) (*pipeline.Summary, error), opts ...Option) int {
	fs := flag.NewFlagSet(tool, flag.ContinueOnError)
	var f Flags
	f.Register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return ExitConfig
	}

	ctx, cancel := SignalContext()
	defer cancel()

	env, err := Setup(ctx, tool, f, opts...)
	if err != nil {
		return ExitCode(os.Stdout, nil, err)
	}
	defer env.Close()

	s, err := run(ctx, env)
	return env.Finish(os.Stdout, s, err)
}
