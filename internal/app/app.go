package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fiam/dboembed/internal/config"
	"github.com/fiam/dboembed/internal/db"
	"github.com/fiam/dboembed/internal/handlers"
	"github.com/fiam/dboembed/internal/httpserver"
	"github.com/fiam/dboembed/internal/logging"
	"github.com/fiam/dboembed/internal/middleware"
	"github.com/fiam/dboembed/internal/models"
	"github.com/fiam/dboembed/internal/oembed"
	"github.com/fiam/dboembed/internal/repositories"
)

const (
	usage        = "expected command: serve, migrate [up|down|status], or resolve [--lenient] <url> [maxwidth] [maxheight]"
	resolveUsage = "usage: resolve [--lenient] <url> [maxwidth] [maxheight]"

	// outcomeNoResult reports a lenient resolve that produced nothing.
	outcomeNoResult = "no_result"
)

var stdout io.Writer = os.Stdout

// Run bootstraps the dboembed service.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "resolve":
		return runResolve(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	deps.Ping = pool.Ping

	handler := middleware.RequestLogger(logger)(handlers.NewRouter(deps))
	srv := httpserver.New(cfg.AppPort, handler, cfg.FetchTimeout+10*time.Second)

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting http server", "port", cfg.AppPort, "providers", len(deps.Providers), "archive", cfg.Archive.Store.Enabled())

	serveErr := srv.Run(ctx, ln)
	logger.Info("http server stopped, draining response archive")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()
	if err := cleanup(shutdownCtx); err != nil {
		logger.Warn("response archive did not drain", "error", err)
	}

	return serveErr
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch command {
	case "status":
		statuses, err := db.MigrationStatuses(ctx, pool)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			mark := " "
			if st.Applied {
				mark = "x"
			}
			fmt.Fprintf(stdout, "[%s] %s\n", mark, st.Name)
		}
		return nil
	case "down":
		name, err := db.MigrateDown(ctx, pool)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(stdout, "no migrations to roll back")
			return nil
		}
		fmt.Fprintf(stdout, "rolled back migration %s\n", name)
		return nil
	default:
		applied, err := db.Migrate(ctx, pool)
		for _, name := range applied {
			fmt.Fprintf(stdout, "applied migration %s\n", name)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(stdout, "no migrations to apply")
		}
		return nil
	}
}

type resolveResult struct {
	URL      string                `json:"url"`
	Outcome  string                `json:"outcome"`
	Error    string                `json:"error,omitempty"`
	Resource *models.EmbedResource `json:"resource,omitempty"`
	HTML     string                `json:"html,omitempty"`
}

// runResolve resolves one URL against the built-in providers and prints the
// outcome. Resources are kept in memory only. With --lenient, unmatched URLs,
// unreachable providers and malformed documents print no_result and succeed.
func runResolve(ctx context.Context, args []string) error {
	lenient := false
	if len(args) > 0 && args[0] == "--lenient" {
		lenient = true
		args = args[1:]
	}
	if len(args) == 0 || len(args) > 3 {
		return errors.New(resolveUsage)
	}

	var size oembed.Size
	for i, dst := range []*int{&size.MaxWidth, &size.MaxHeight} {
		if len(args) <= i+1 {
			break
		}
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[i+1], err)
		}
		*dst = v
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.LogLevel))

	resolver := newResolver(cfg, repositories.NewInMemoryEmbedRepository())
	var (
		res       *models.EmbedResource
		lookupErr error
	)
	if lenient {
		res, lookupErr = resolver.Resolve(ctx, args[0], size)
	} else {
		res, lookupErr = resolver.Lookup(ctx, args[0], size)
	}

	out := resolveResult{URL: args[0], Outcome: oembed.OutcomeOf(lookupErr)}
	switch {
	case lookupErr != nil:
		out.Error = lookupErr.Error()
	case res == nil:
		out.Outcome = outcomeNoResult
	default:
		out.Resource = res
		out.HTML = res.RenderHTML()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if lookupErr != nil {
		return fmt.Errorf("resolve %s: %w", args[0], lookupErr)
	}
	return nil
}
