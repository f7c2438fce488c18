package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/elonfeng/asoradar/internal/config"
	"github.com/elonfeng/asoradar/internal/logging"
	"github.com/elonfeng/asoradar/internal/observability"
	"github.com/elonfeng/asoradar/internal/scheduler"
	"github.com/elonfeng/asoradar/internal/store"
	"github.com/elonfeng/asoradar/pkg/alert"
	"github.com/elonfeng/asoradar/pkg/aso"
	"github.com/elonfeng/asoradar/pkg/keyword"
	"github.com/elonfeng/asoradar/pkg/market"
	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/elonfeng/asoradar/pkg/server"
	"github.com/elonfeng/asoradar/pkg/source"
	"github.com/sirupsen/logrus"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if storeFlag != "" {
		cfg.Market.Store = storeFlag
	}
	if countryFlag != "" {
		cfg.Market.Country = strings.ToLower(countryFlag)
	}
	return cfg, cfg.Validate()
}

// env is everything a command needs, plus the cleanups to run at exit.
type env struct {
	cfg     *config.Config
	log     *logrus.Logger
	session *aso.Session
	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}

	shutdown, err := observability.InitTracer(ctx, cfg.Tracing, log)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	})

	src, err := buildSource(cfg, e)
	if err != nil {
		e.Close()
		return nil, err
	}

	extractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	session, err := aso.NewSession(aso.Store(cfg.Market.Store), src, cfg.Market.Session(),
		aso.WithLogger(log),
		aso.WithExtractor(extractor),
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.session = session

	log.WithFields(logrus.Fields{
		"store":   cfg.Market.Store,
		"country": cfg.Market.Country,
		"source":  src.Name(),
	}).Debug("session ready")
	return e, nil
}

func buildSource(cfg *config.Config, e *env) (market.DataSource, error) {
	if cfg.Source.Kind != "snapshot" {
		return source.New(cfg.Market.Store, nil)
	}
	db, err := store.Open(cfg.Source.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.closers = append(e.closers, func() { db.Close() })
	return store.NewSource(db), nil
}

func buildExtractor(ctx context.Context, cfg *config.Config) (keyword.Extractor, error) {
	ec := cfg.Extractor
	if !ec.UsesLLM() {
		return keyword.NewTokenizer(ec.Stopwords...), nil
	}
	if ec.APIKey == "" {
		return nil, fmt.Errorf("extractor %s: no api key", ec.Provider)
	}
	ex, err := keyword.NewLLMExtractor(ctx, keyword.LLMConfig{
		Provider: ec.Provider,
		Model:    ec.Model,
		APIKey:   ec.APIKey,
		BaseURL:  ec.BaseURL,
		Limit:    ec.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}
	return ex, nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func batchOptions(e *env) aso.BatchOptions {
	return aso.BatchOptions{
		Concurrency: e.cfg.Batch.Concurrency,
		Pause:       e.cfg.Batch.ParsePause(),
		Logger:      e.log,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAnalyze(ctx context.Context, keywords []string) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	results := make(map[string]*opportunity.ScoreResult, len(keywords))
	if len(keywords) == 1 {
		res, err := e.session.AnalyzeKeyword(ctx, keywords[0])
		if err != nil {
			return err
		}
		results[keywords[0]] = res
	} else {
		results, err = aso.AnalyzeKeywords(ctx, e.session, keywords, batchOptions(e))
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		if len(keywords) == 1 {
			return printJSON(results[keywords[0]])
		}
		return printJSON(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tDIFFICULTY\tTRAFFIC\tTITLE MATCHES\tRANKED")
	for _, kw := range keywords {
		res, ok := results[kw]
		if !ok {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", kw)
			continue
		}
		d, t := res.Difficulty, res.Traffic
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%d exact, %d broad\t%d\n",
			kw, d.Score, t.Score, d.TitleMatches.Exact, d.TitleMatches.Broad, t.Ranked.Count)
	}
	return w.Flush()
}

func runOpportunity(ctx context.Context, kw string) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.session.MarketOpportunity(ctx, kw)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(report)
	}

	fmt.Printf("keyword:     %s\n", report.Keyword)
	fmt.Printf("opportunity: %.2f\n", report.Opportunity)
	fmt.Printf("saturation:  %.2f\n", report.Saturation)
	fmt.Printf("difficulty:  %.2f\n", report.Competition.Difficulty.Score)
	fmt.Printf("traffic:     %.2f\n", report.Competition.Traffic.Score)
	fmt.Printf("relevancy:   %.2f\n", opportunity.KeywordRelevancy(report.Keyword))
	return nil
}

type suggestFlags struct {
	strategy string
	appID    string
	apps     []string
	keywords []string
	num      int
}

func runSuggest(ctx context.Context, f suggestFlags) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	words, err := e.session.Suggest(ctx, aso.SuggestOptions{
		Strategy: opportunity.Strategy(f.strategy),
		AppID:    f.appID,
		AppIDs:   f.apps,
		Keywords: f.keywords,
		Num:      f.num,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(words)
	}
	if len(words) == 0 {
		fmt.Println("no suggestions (check --app, --apps or --keywords for the strategy)")
		return nil
	}
	for _, w := range words {
		fmt.Println(w)
	}
	return nil
}

func runCombos(keywords []string, maxLen int) error {
	combos := opportunity.KeywordCombinations(keywords, maxLen)
	if jsonOutput {
		return printJSON(combos)
	}
	for _, c := range combos {
		fmt.Println(c)
	}
	return nil
}

func runCompare(ctx context.Context, appID, competitorID string) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	gap, err := e.session.CompareApps(ctx, appID, competitorID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(gap)
	}

	for _, section := range []struct {
		name  string
		items []string
	}{
		{"advantages", gap.Advantages},
		{"disadvantages", gap.Disadvantages},
		{"opportunities", gap.Opportunities},
	} {
		fmt.Printf("%s:\n", section.name)
		if len(section.items) == 0 {
			fmt.Println("  (none)")
		}
		for _, item := range section.items {
			fmt.Printf("  - %s\n", item)
		}
	}
	return nil
}

func runKeywords(ctx context.Context, appID string) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	words, err := e.session.AppKeywords(ctx, appID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(words)
	}
	fmt.Println(strings.Join(words, ", "))
	return nil
}

func runImport(ctx context.Context, path, dsn string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dsn == "" {
		dsn = cfg.Source.DSN
	}
	if dsn == "" {
		return errors.New("no snapshot database: pass --dsn or set source.dsn")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := store.ReadSnapshot(f)
	if err != nil {
		return err
	}

	db, err := store.Open(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.Import(ctx, snap); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	terms := make([]string, 0, len(snap.Searches))
	for t := range snap.Searches {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	fmt.Fprintf(os.Stderr, "imported %d apps, %d searches, %d collections, %d similar lists, %d suggestion lists\n",
		len(snap.Apps), len(snap.Searches), len(snap.Collections), len(snap.Similar), len(snap.Suggestions))
	if len(terms) > 0 {
		fmt.Fprintf(os.Stderr, "searches: %s\n", strings.Join(terms, ", "))
	}
	return nil
}

func newServer(e *env, port int) *server.Server {
	if port == 0 {
		port = e.cfg.Server.Port
	}
	return server.New(e.session, server.Options{
		Port:           port,
		AllowedOrigins: e.cfg.Server.AllowedOrigins,
		RateLimit:      e.cfg.Server.RateLimit,
		Batch:          batchOptions(e),
		Logger:         e.log,
	})
}

func runServe(port int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	return newServer(e, port).ListenAndServe(ctx)
}

func runDaemon(port int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if len(e.cfg.Watch.Keywords) == 0 {
		e.log.Warn("watchlist is empty; only the HTTP server will run")
	}

	sched := scheduler.New(e.session, buildAlertManager(e.cfg),
		e.cfg.Watch.Keywords,
		e.cfg.Watch.ParseInterval(),
		e.cfg.Watch.MinOpportunity,
		e.log,
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			e.log.WithError(err).Error("scheduler stopped")
		}
	}()

	err = newServer(e, port).ListenAndServe(ctx)
	e.log.Info("shutting down")
	return err
}
