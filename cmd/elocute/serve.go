package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/elocute/internal/config"
	"github.com/MrWong99/elocute/internal/health"
	"github.com/MrWong99/elocute/internal/observe"
	"github.com/MrWong99/elocute/internal/server"
)

// sweepInterval is how often idle sessions are expired.
const sweepInterval = time.Minute

// runServe runs the HTTP practice API until ctx is cancelled. Edits to the
// config file are picked up for the log level and practice settings;
// provider changes need a restart.
func runServe(ctx context.Context, configPath string, cfg *config.Config, level *slog.LevelVar) int {
	// ── Telemetry ─────────────────────────────────────────────────────────────
	metrics := observe.DefaultMetrics()
	var serverOpts []server.Option
	if cfg.Telemetry.Enabled {
		tel, err := observe.Setup(cfg.Telemetry.ServiceName, observe.WithServiceVersion(version))
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(sctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
		metrics = tel.Metrics
		serverOpts = append(serverOpts, server.WithMetricsEndpoint(tel.Handler()))
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	// ── Sessions + HTTP ───────────────────────────────────────────────────────
	mgr := server.NewManager(newSessionFactory(cfg.Practice, ps, nil, metrics),
		server.WithMaxSessions(cfg.Server.MaxSessions),
		server.WithSessionTTL(cfg.Server.SessionTTL),
		server.WithManagerMetrics(metrics),
	)
	checks := health.New(
		health.Capabilities(map[string]bool{"tts": ps.TTS != nil, "stt": ps.STT != nil}),
		health.Capacity(mgr.Len, cfg.Server.MaxSessions),
	)
	serverOpts = append(serverOpts, server.WithHealth(checks), server.WithServerMetrics(metrics))
	api := server.New(mgr, serverOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.ListenAndServe(gctx, cfg.Server.Addr()) })
	g.Go(func() error { return mgr.Run(gctx, sweepInterval) })

	// ── Config hot reload ─────────────────────────────────────────────────────
	reloader, err := config.NewReloader(configPath, func(d config.ConfigDiff, _ *config.Config) {
		applyReload(d, level, func(p config.PracticeConfig) {
			mgr.SetFactory(newSessionFactory(p, ps, nil, metrics))
		})
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		g.Go(func() error { return reloader.Run(gctx) })
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil {
		slog.Error("serve error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyReload applies the hot-reloadable parts of d and warns about the rest.
func applyReload(d config.ConfigDiff, level *slog.LevelVar, setPractice func(config.PracticeConfig)) {
	if d.LogLevelChanged {
		level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PracticeChanged {
		setPractice(d.NewPractice)
		slog.Info("practice settings reloaded; new sessions use them",
			"capture", d.NewPractice.CaptureDuration(),
			"sample_rate", d.NewPractice.Rate(),
			"feedback_language", d.NewPractice.FeedbackLanguage,
		)
	}
	if d.ProvidersChanged {
		slog.Warn("provider configuration changed; restart to apply")
	}
	if d.ListenAddrChanged {
		slog.Warn("listen address changed; restart to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         elocute, startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("TTS", cfg.Providers.TTS)
	printProvider("STT", cfg.Providers.STT)
	printProvider("LLM", cfg.Providers.LLM)
	fmt.Printf("║  Capture         : %-19s ║\n", cfg.Practice.CaptureDuration())
	fmt.Printf("║  Sample rate     : %-19d ║\n", cfg.Practice.Rate())
	if cfg.Server.MaxSessions > 0 {
		fmt.Printf("║  Max sessions    : %-19d ║\n", cfg.Server.MaxSessions)
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.Addr())
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(label string, e config.ProviderEntry) {
	val := "(not configured)"
	if e.Name != "" {
		val = e.Name
		if e.Model != "" {
			val += " / " + e.Model
		}
		if n := len(e.Fallbacks); n > 0 {
			val += fmt.Sprintf(" +%d", n)
		}
	}
	if len(val) > 19 {
		val = val[:16] + "..."
	}
	fmt.Printf("║  %-16s: %-19s ║\n", label, val)
}
