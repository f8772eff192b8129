package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog/log"

	"github.com/zombor/invoice-extractor/internal/config"
	"github.com/zombor/invoice-extractor/internal/logger"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	rootFlags := ff.NewFlagSet("invoice-extractor")
	cfg := config.Register(rootFlags)
	rootFlags.StringLong("config", "", "Config file with one 'flag value' pair per line")

	extract := &extractOptions{}
	extractFlags := ff.NewFlagSet("extract").SetParent(rootFlags)
	extractFlags.StringVar(&extract.output, 'o', "output", "", "Write the result to this .json or .xlsx file")
	extractFlags.StringVar(&extract.outputDir, 0, "output-dir", "", "Write one result per input file into this directory")
	extractFlags.StringVar(&extract.format, 0, "format", "json", "Format for --output-dir: json or xlsx")

	serveCmd := &ff.Command{
		Name:      "serve",
		Usage:     "invoice-extractor serve [FLAGS]",
		ShortHelp: "run the HTTP upload server",
		Flags:     ff.NewFlagSet("serve").SetParent(rootFlags),
		Exec: func(ctx context.Context, args []string) error {
			return runServe(ctx, cfg)
		},
	}
	extractCmd := &ff.Command{
		Name:      "extract",
		Usage:     "invoice-extractor extract [FLAGS] FILE...",
		ShortHelp: "extract invoice fields from local files",
		Flags:     extractFlags,
		Exec: func(ctx context.Context, args []string) error {
			return runExtract(ctx, cfg, extract, args)
		},
	}
	root := &ff.Command{
		Name:        "invoice-extractor",
		Usage:       "invoice-extractor [FLAGS] <SUBCOMMAND>",
		ShortHelp:   "turn invoice images and PDFs into structured JSON",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{serveCmd, extractCmd},
		Exec: func(ctx context.Context, args []string) error {
			return runServe(ctx, cfg)
		},
	}

	if err := root.Parse(os.Args[1:],
		ff.WithEnvVarPrefix(config.EnvVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		selected := root.GetSelected()
		if selected == nil {
			selected = root
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(selected))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid logging configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.ApplyEnvFallbacks()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
