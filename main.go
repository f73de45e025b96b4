// Package main is the entry point for loopchart: a one-shot chart renderer
// or a long running chart service fed by a snapshot file or Nightscout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/mrcode/loopchart/internal/chart"
	"github.com/mrcode/loopchart/internal/feed"
	"github.com/mrcode/loopchart/internal/models"
	"github.com/mrcode/loopchart/internal/nightscout"
	"github.com/mrcode/loopchart/internal/obvy"
	"github.com/mrcode/loopchart/internal/render"
	"github.com/mrcode/loopchart/internal/server"
)

func main() {
	var (
		configFlag      = flag.String("config", "", "Settings file (JSON or YAML); default is the user config dir")
		inputFlag       = flag.String("input", "", "Snapshot file to chart and watch (JSON or YAML)")
		nightscoutFlag  = flag.String("nightscout", "", "Nightscout site URL, overrides settings")
		listenFlag      = flag.String("listen", "", "HTTP listen address, overrides settings")
		pngFlag         = flag.String("png", "", "Render one PNG to this path and exit")
		sparklineFlag   = flag.Bool("sparkline", false, "Print a braille sparkline of the glucose history and exit")
		screenHoursFlag = flag.Int("screen-hours", 0, "Visible hours for renders (0 = settings)")
		logLevelFlag    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logJSONFlag     = flag.Bool("log-json", false, "Log JSON instead of colored text")
		writeConfigFlag = flag.String("write-config", "", "Write the effective settings to this path and exit")
	)
	flag.Parse()

	setupLogger(*logLevelFlag, *logJSONFlag)

	settings, err := loadSettings(*configFlag)
	if err != nil {
		slog.Error("Failed to load settings", slog.Any("error", err))
		os.Exit(1)
	}
	overrides := settings.Clone()
	if *inputFlag != "" {
		overrides.InputFile = *inputFlag
	}
	if *nightscoutFlag != "" {
		overrides.NightscoutURL = *nightscoutFlag
	}
	if *listenFlag != "" {
		overrides.ListenAddr = *listenFlag
	}
	if *screenHoursFlag > 0 {
		overrides.ScreenHours = *screenHoursFlag
	}
	settings.Update(overrides)

	if *writeConfigFlag != "" {
		if err := settings.SaveFile(*writeConfigFlag); err != nil {
			slog.Error("Failed to write settings", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("Settings written", slog.String("path", *writeConfigFlag))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pngFlag != "" || *sparklineFlag {
		err = runOnce(ctx, settings, *pngFlag, *sparklineFlag)
	} else {
		err = serve(ctx, settings)
	}
	if err != nil {
		slog.Error("loopchart failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogger(level string, json bool) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})
	}
	slog.SetDefault(slog.New(h))
}

func loadSettings(path string) (*models.Settings, error) {
	if path != "" {
		return models.LoadSettingsFile(path)
	}
	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		return nil, err
	}
	return settings, nil
}

func layoutFor(s *models.Settings) chart.Layout {
	c := s.Clone()
	return chart.Layout{Width: float64(c.ChartWidth), Height: float64(c.ChartHeight), Hours: c.Hours}
}

// initialSnapshot reads the configured source once. Without a source the
// chart starts empty at the current time.
func initialSnapshot(ctx context.Context, s *models.Settings) (*models.Snapshot, error) {
	c := s.Clone()
	now := time.Now()

	var (
		snap *models.Snapshot
		err  error
	)
	switch {
	case c.InputFile != "":
		snap, err = feed.ReadSnapshot(c.InputFile)
	case s.IsConfigured():
		snap, err = nightscout.NewClientFromSettings(s).FetchSnapshot(ctx, now, chart.Lookback)
	default:
		slog.Warn("No input file or Nightscout site configured, starting empty")
		snap = &models.Snapshot{}
	}
	if err != nil {
		return nil, err
	}

	if snap.Now.IsZero() {
		snap.Now = now
	}
	if snap.MaxBasal == 0 {
		snap.MaxBasal = c.MaxBasal
	}
	return snap, nil
}

func runOnce(ctx context.Context, s *models.Settings, pngPath string, sparkline bool) error {
	snap, err := initialSnapshot(ctx, s)
	if err != nil {
		return err
	}

	c := s.Clone()
	g := chart.Build(snap, layoutFor(s))
	v := chart.Zoom(g, c.ScreenHours, chart.AxesConfigFromSettings(s))

	if sparkline {
		if n := len(snap.Glucose); n > 0 {
			last := snap.Glucose[n-1]
			fmt.Printf("%s %s %s\n", chart.FormatGlucose(last.Value(), c.Unit), c.Unit, last.TrendArrow())
		}
		values := render.GlucoseValues(v, c.Unit, 48)
		fmt.Println(render.Sparkline(values, 8))
	}

	if pngPath == "" {
		return nil
	}
	renderer, err := render.NewRenderer(s)
	if err != nil {
		return err
	}
	f, err := os.Create(pngPath) //nolint:gosec // Output path is chosen by the operator
	if err != nil {
		return fmt.Errorf("creating %s: %w", pngPath, err)
	}
	if err := renderer.EncodePNG(f, v); err != nil {
		_ = f.Close()
		return err
	}
	slog.Info("Chart written", slog.String("path", pngPath), slog.Float64("width", v.Width))
	return f.Close()
}

func serve(ctx context.Context, s *models.Settings) error {
	shutdownTracing, err := obvy.InitTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("Trace exporter shutdown failed", slog.Any("error", err))
		}
	}()

	snap, err := initialSnapshot(ctx, s)
	if err != nil {
		slog.Error("Initial snapshot failed, starting empty", slog.Any("error", err))
		snap = &models.Snapshot{Now: time.Now(), MaxBasal: s.Clone().MaxBasal}
	}

	stats := obvy.NewStatsInternal()
	logger := slog.Default().With(slog.String("component", "chart"))
	coord := chart.NewCoordinator(*snap, layoutFor(s), chart.WithLogger(logger), chart.WithObserver(stats))
	defer coord.Stop()

	renderer, err := render.NewRenderer(s)
	if err != nil {
		return err
	}

	c := s.Clone()
	feedOpts := []feed.Option{
		feed.WithMetrics(stats),
		feed.WithBaseline(snap),
		feed.WithMaxBasal(c.MaxBasal),
		feed.WithLogger(slog.Default().With(slog.String("component", "feed"))),
	}
	switch {
	case c.InputFile != "":
		w := feed.NewFileWatcher(c.InputFile, coord, feedOpts...)
		go runFeed(ctx, "file", w.Run)
	case s.IsConfigured():
		interval := time.Duration(c.RefreshInterval) * time.Second
		p := feed.NewPoller(nightscout.NewClientFromSettings(s), coord, interval, chart.Lookback, feedOpts...)
		go runFeed(ctx, "nightscout", p.Run)
	}

	srv := server.NewServer(coord, s, stats, renderer)
	srv.SetLogger(slog.Default().With(slog.String("component", "server")))
	return srv.ListenAndServe(ctx, c.ListenAddr)
}

func runFeed(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Feed stopped", slog.String("feed", name), slog.Any("error", err))
	}
}

func init() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(out, strings.TrimSpace(`
Charts glucose, insulin, carbs and loop predictions.

  loopchart -input snapshot.yaml -png chart.png   render once
  loopchart -input snapshot.yaml -sparkline       print a braille sparkline
  loopchart -nightscout https://ns.example.com    serve /api, /ws and /metrics`))
		fmt.Fprintln(out)
		flag.PrintDefaults()
	}
}
