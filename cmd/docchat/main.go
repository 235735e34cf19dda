package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/docchat/cli/config"
	"github.com/docchat/cli/internal/api"
	"github.com/docchat/cli/internal/chat"
	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/documents"
	"github.com/docchat/cli/internal/logger"
	"github.com/docchat/cli/internal/scope"
	"github.com/docchat/cli/internal/tui"
)

func main() {
	var (
		baseURL = flag.String("url", "", "Server base URL (overrides config)")
		variant = flag.String("variant", "", "Chat client variant: current or legacy (overrides config)")
	)
	flag.Usage = usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Server.BaseURL = *baseURL
	}
	if *variant != "" {
		cfg.Chat.Variant = *variant
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.File, cfg.Logging.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	env, err := newEnv(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		if err := runTUI(env); err != nil {
			fmt.Fprintf(os.Stderr, "Error running app: %v\n", err)
			os.Exit(1)
		}
		return
	}

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, env, flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

// env holds the services shared by every subcommand.
type env struct {
	cfg       *config.Config
	logger    *logger.Logger
	client    *api.Client
	docs      *docs.Service
	inspector *documents.Inspector
	variant   scope.Variant
}

func newEnv(cfg *config.Config, log *logger.Logger) (*env, error) {
	variant, err := scope.ParseVariant(cfg.Chat.Variant)
	if err != nil {
		return nil, err
	}
	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout, log)
	return &env{
		cfg:       cfg,
		logger:    log,
		client:    client,
		docs:      docs.NewService(client, docs.NewViewCache(10*time.Minute), cfg.Files.PageSize, log),
		inspector: documents.NewInspector(400, log),
		variant:   variant,
	}, nil
}

func runTUI(e *env) error {
	machine := scope.New(e.variant, e.client, e.logger)
	app := tui.NewApp(tui.Deps{
		Config:    e.cfg,
		Docs:      e.docs,
		Scope:     machine,
		Session:   chat.NewSession(e.client, machine, e.cfg.Chat.SystemMessage, e.logger),
		Inspector: e.inspector,
		Logger:    e.logger,
	})
	return app.Run()
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: docchat [flags] [command] [args]\n\n")
	fmt.Fprintf(out, "Without a command the interactive terminal UI starts.\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}
