package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"earnframe/internal/analytics"
	"earnframe/internal/cmdlog"
	"earnframe/internal/config"
	"earnframe/internal/earnings"
	"earnframe/internal/engage"
	"earnframe/internal/fcclient"
	"earnframe/internal/frame"
	"earnframe/internal/logging"
	"earnframe/internal/metrics"
	"earnframe/internal/model"
	"earnframe/internal/observe"
	"earnframe/internal/render"
	"earnframe/internal/store/eventlog"
	"earnframe/internal/theme"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "serve":
		err = cmdlog.Run("serve", cmdServe)
	case "check":
		err = cmdlog.Run("check", cmdCheck)
	case "monitor":
		err = cmdlog.Run("monitor", cmdMonitor)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: earnframe <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./earnframe.yaml")
	fmt.Println("  serve       Serve the frame over HTTP")
	fmt.Println("  check       Run one engagement check and earnings lookup for --fid")
	fmt.Println("  monitor     Show hourly outcome buckets from the event log")
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./earnframe.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	return nil
}

func loadConfig(fs *flag.FlagSet) (config.Config, error) {
	cfgPath := fs.String("config", "./earnframe.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return cfg, err
	}
	logging.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

// app holds the wired components shared by serve and check.
type app struct {
	verifier *engage.Verifier
	fetcher  *earnings.Fetcher
	neynar   *fcclient.NeynarClient
	events   *eventlog.DB
	observer observe.Observer
}

func (a *app) Close() {
	if a.events != nil {
		_ = a.events.Close()
	}
}

func build(cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := engage.ParsePolicy(cfg.Engagement.Policy)
	if err != nil {
		return nil, err
	}
	a := &app{}
	obs := observe.Multi{metrics.Observer{}}
	if cfg.Storage.DBPath != "" {
		db, err := eventlog.Open(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		a.events = db
		obs = append(obs, db)
	}
	a.observer = obs

	p := cfg.Providers
	opts := fcclient.Options{Timeout: p.Timeout, MaxAttempts: p.MaxAttempts, BaseBackoff: p.BaseBackoff, RPS: p.RPS, Burst: p.Burst}
	a.neynar = fcclient.NewNeynarClient(p.NeynarBaseURL, cfg.Credentials.NeynarAPIKey, opts)
	a.verifier = &engage.Verifier{
		Primary:   fcclient.NewWieldClient(p.WieldBaseURL, cfg.Credentials.WieldAPIKey, opts),
		Secondary: a.neynar,
		CastHash:  cfg.Frame.CastHash,
		Limit:     cfg.Engagement.ReactionLimit,
		Policy:    policy,
		Observer:  obs,
	}
	a.fetcher = earnings.NewFetcher(p.AirstackURL, cfg.Credentials.AirstackAPIKey, opts)
	a.fetcher.Observer = obs
	return a, nil
}

func cmdServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides config)")
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	renderer, err := render.NewRenderer(render.NewHTTPAvatars(cfg.Providers.Timeout))
	if err != nil {
		return err
	}
	cards, err := render.NewSigner(cfg.Credentials.CardSecret)
	if err != nil {
		return err
	}
	ctrl := &frame.Controller{
		Verifier: a.verifier,
		Earnings: a.fetcher,
		Images:   renderer,
		Cards:    cards,
		Observer: a.observer,
		Settings: frame.Settings{
			PublicURL:       cfg.Server.PublicURL,
			BasePath:        cfg.Server.BasePath,
			Title:           cfg.Frame.Title,
			TokenSymbol:     cfg.Frame.TokenSymbol,
			LandingImageURL: cfg.Frame.LandingImageURL,
			RequireBoth:     a.verifier.Policy == engage.All,
		},
	}
	if cfg.Frame.ValidateActions {
		ctrl.Validator = a.neynar
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           ctrl.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if a.events != nil && cfg.Storage.Retention > 0 {
		go a.events.RunRetention(ctx, cfg.Storage.Retention, time.Hour)
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("server_listening", map[string]any{"addr": srv.Addr, "base_path": cfg.Server.BasePath})
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logging.Info("server_shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cmdCheck() error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fid := fs.String("fid", "", "Farcaster id to check")
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	if *fid == "" {
		return errors.New("--fid is required")
	}
	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	id := model.FID(*fid)
	engaged := a.verifier.Verify(ctx, id)
	fmt.Printf("fid=%s engaged=%t policy=%s\n", id, engaged, a.verifier.Policy)
	if !engaged {
		return nil
	}
	info, err := a.fetcher.Fetch(ctx, id)
	if err != nil {
		return err
	}
	name := "-"
	if info.ProfileName != nil {
		name = *info.ProfileName
	}
	fmt.Printf("profile=%s today=%s lifetime=%s\n", name, info.TodayEarnings, info.LifetimeEarnings)
	if info.FarScore != nil {
		fmt.Printf("farscore=%.2f\n", *info.FarScore)
	}
	return nil
}

func cmdMonitor() error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	hours := fs.Int("hours", 24, "look-back window in hours")
	only := fs.String("type", "", "print only the count of this event type")
	prune := fs.Bool("prune", false, "delete events older than storage.retention first")
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	if cfg.Storage.DBPath == "" {
		return errors.New("storage.dbPath is not configured")
	}
	db, err := eventlog.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if *prune && cfg.Storage.Retention > 0 {
		n, err := db.Prune(ctx, time.Now().UTC().Add(-cfg.Storage.Retention))
		if err != nil {
			return err
		}
		fmt.Printf("pruned=%d\n", n)
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(*hours) * time.Hour)
	if *only != "" {
		n, err := db.CountWithin(ctx, start, end.Add(time.Second), *only)
		if err != nil {
			return err
		}
		fmt.Printf("%s=%d\n", *only, n)
		return nil
	}
	events, err := db.LoadEventsRange(ctx, start, end.Add(time.Second), "")
	if err != nil {
		return err
	}
	b := analytics.HourlyOutcomes(events)
	for _, k := range analytics.SortedBucketKeys(b) {
		fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), b[k])
	}
	s := analytics.Summarize(events)
	fmt.Printf("checks=%d engaged=%d fallbacks=%d (%.0f%%) earnings_errors=%d render_errors=%d provider_failures=%v\n",
		s.Checks, s.Engaged, s.Fallbacks, 100*s.FallbackRate(), s.EarningsErrs, s.RenderErrs, s.ProviderFails)
	return nil
}
