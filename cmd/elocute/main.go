// Command elocute is an English pronunciation trainer. It speaks a reference
// sentence, records the learner's attempt, and scores it with written
// feedback, either once from the terminal (practice) or over HTTP (serve).
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

	"github.com/MrWong99/elocute/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: elocute [-config path] <command> [flags]

commands:
  practice   run one practice round and print the report
  serve      run the HTTP practice API until interrupted
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("elocute", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd != "practice" && cmd != "serve" {
		fmt.Fprintf(os.Stderr, "elocute: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "elocute: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "elocute: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "practice":
		return runPractice(ctx, cfg, cmdArgs)
	default:
		return runServe(ctx, *configPath, cfg, level)
	}
}

// newLogger creates a text logger on w whose level can be changed later
// through the returned [slog.LevelVar].
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(level.SlogLevel())
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}
