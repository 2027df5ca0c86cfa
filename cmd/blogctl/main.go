package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"blog-client/internal/api"
	"blog-client/internal/config"
	"blog-client/internal/domain"
	"blog-client/internal/observability"
	"blog-client/internal/post"
	"blog-client/internal/session"
	"blog-client/internal/tokenstore"
)

const usage = `usage: blogctl [flags] <command> [args]

commands:
  login            -username -password
  register         -email -username -password
  logout
  whoami
  profile          [-email] [-first-name] [-last-name] [-bio] [-picture file]
  posts
  post <slug>
  categories
  create           -title -category [-description] [-image file]
  update <slug>    [-title] [-category] [-description] [-image file]
  delete <slug>
  forgot-password  -email
  reset-password   -token -password -confirm

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blogctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "print results as JSON")
	ephemeral := fs.Bool("ephemeral", false, "keep tokens in memory instead of the token store")
	metrics := fs.Bool("metrics", false, "print client metrics after the command")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	observability.InitLoggerTo(stderr, cfg.LogLevel, cfg.LogFormat)

	store, closeStore, err := openTokenStore(cfg, *ephemeral)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer closeStore()

	opts := []api.Option{
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	if cfg.OpenAPISpec != "" {
		v, err := api.NewValidator(cfg.OpenAPISpec, cfg.APIURL)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		opts = append(opts, api.WithValidator(v))
	}

	client := api.NewClient(cfg.APIURL, opts...)
	manager := session.NewManager(client, store)
	manager.Init(ctx)

	a := &app{
		session: manager,
		posts:   post.NewStore(client, manager),
		out:     stdout,
		json:    *jsonOut,
	}

	code := 0
	if err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, err)
			code = 2
		} else {
			slog.Debug("command failed", slog.String("command", fs.Arg(0)), slog.String("error", err.Error()))
			fmt.Fprintln(stderr, "error:", err)
			code = 1
		}
	}

	if *metrics {
		if err := observability.WriteClientMetrics(stdout, nil); err != nil {
			fmt.Fprintln(stderr, err)
		}
	}
	return code
}

func openTokenStore(cfg *config.Config, ephemeral bool) (domain.TokenStore, func(), error) {
	if ephemeral {
		return tokenstore.NewMemoryStore(), func() {}, nil
	}
	store, err := tokenstore.OpenBolt(cfg.TokenStorePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}
