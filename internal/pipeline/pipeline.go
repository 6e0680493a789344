// Package pipeline runs one scrape: fetch, extract, resolve teams, then the
// two reconcile phases. Every fatal error is returned as a *PhaseError naming
// the step that failed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"nba_salaries/ingestion/internal/extract"
	"nba_salaries/ingestion/internal/metrics"
	"nba_salaries/ingestion/internal/models"
	"nba_salaries/ingestion/internal/reconcile"
	"nba_salaries/ingestion/internal/teams"

	crerr "github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// Phase names used in errors, logs and the salaries_errors_total metric
const (
	PhaseConfig  = "config"
	PhaseFetch   = "fetch"
	PhaseExtract = "extract"
	PhaseTeams   = "teams"
	PhasePlayers = "players"
)

// PhaseError wraps a fatal error with the phase it occurred in
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves a page body
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxAttempts int) (string, error)
}

// PageCache stores page bodies by URL
type PageCache interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Set(ctx context.Context, url, body string) error
	Delete(ctx context.Context, url string) error
}

// Config describes one run
type Config struct {
	URL         string
	Year        int
	MaxAttempts int
	// DryRun stops after team resolution; the sink is never called
	DryRun bool
}

// Summary reports what a run did
type Summary struct {
	Extracted int
	Teams     map[string]models.Team
	CodeToID  map[string]int
	Players   reconcile.Result
	CacheHit  bool
	Duration  time.Duration
}

// Pipeline wires the stages together. It is safe to Run repeatedly but not
// concurrently.
type Pipeline struct {
	cfg        Config
	fetcher    Fetcher
	cache      PageCache
	extractor  *extract.Extractor
	resolver   *teams.Resolver
	reconciler *reconcile.Reconciler
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCache consults cache before fetching
func WithCache(cache PageCache) Option {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

// WithExtractor replaces the default-selector extractor
func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// WithResolver replaces the default NBA team table
func WithResolver(r *teams.Resolver) Option {
	return func(p *Pipeline) {
		p.resolver = r
	}
}

// WithReconciler replaces the reconciler built around the sink
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(p *Pipeline) {
		p.reconciler = r
	}
}

// New creates a pipeline. sink may be nil when cfg.DryRun is set.
func New(cfg Config, fetcher Fetcher, sink reconcile.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extract.New(extract.DefaultSelectors()),
		resolver:  teams.NewResolver(teams.DefaultNames()),
	}
	if sink != nil {
		p.reconciler = reconcile.New(sink)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one scrape
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	log.Info().
		Str("url", p.cfg.URL).
		Int("year", p.cfg.Year).
		Bool("dry_run", p.cfg.DryRun).
		Msg("Starting salary sync")

	markup, hit, err := p.page(ctx)
	if err != nil {
		return summary, p.fail(start, PhaseFetch, err)
	}
	summary.CacheHit = hit

	records, err := p.extract(markup)
	if err != nil {
		if hit {
			// a cached page that no longer parses must not be served again
			if delErr := p.cache.Delete(ctx, p.cfg.URL); delErr != nil {
				log.Warn().Err(delErr).Msg("Failed to evict cached page")
			}
		}
		return summary, p.fail(start, PhaseExtract, err)
	}
	summary.Extracted = len(records)

	if p.cache != nil && !hit {
		if err := p.cache.Set(ctx, p.cfg.URL, markup); err != nil {
			log.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	summary.Teams = p.resolver.Resolve(records)

	if p.cfg.DryRun {
		summary.Duration = time.Since(start)
		log.Info().
			Int("extracted", summary.Extracted).
			Int("teams", len(summary.Teams)).
			Dur("duration", summary.Duration).
			Msg("Dry run complete, nothing written")
		return summary, nil
	}

	if p.reconciler == nil {
		return summary, p.fail(start, PhaseTeams, crerr.New("no sink configured"))
	}

	// phase 1 commits before phase 2 starts
	codeToID, err := p.reconciler.UpsertTeams(ctx, summary.Teams)
	if err != nil {
		return summary, p.fail(start, PhaseTeams, err)
	}
	summary.CodeToID = codeToID

	result, err := p.reconciler.UpsertPlayers(ctx, records, codeToID, p.cfg.Year)
	summary.Players = result
	if err != nil {
		return summary, p.fail(start, PhasePlayers, err)
	}

	summary.Duration = time.Since(start)
	metrics.RecordRun(summary.Extracted, len(codeToID), result.Considered, result.Written)
	metrics.RecordSync("success", summary.Duration.Seconds())

	log.Info().
		Int("extracted", summary.Extracted).
		Int("teams", len(codeToID)).
		Int("players_considered", result.Considered).
		Int("players_written", result.Written).
		Bool("cache_hit", summary.CacheHit).
		Dur("duration", summary.Duration).
		Msg("Salary sync complete")

	return summary, nil
}

func (p *Pipeline) page(ctx context.Context) (string, bool, error) {
	if p.cache != nil {
		body, ok, err := p.cache.Get(ctx, p.cfg.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Page cache unavailable, fetching")
		} else if ok {
			log.Debug().Str("url", p.cfg.URL).Msg("Page served from cache")
			return body, true, nil
		}
	}

	body, err := p.fetcher.Fetch(ctx, p.cfg.URL, p.cfg.MaxAttempts)
	if err != nil {
		return "", false, err
	}
	return body, false, nil
}

// extract drains the sequence; any malformed item aborts the run
func (p *Pipeline) extract(markup string) ([]models.RawPlayerRecord, error) {
	seq, err := p.extractor.Extract(markup)
	if err != nil {
		return nil, err
	}

	var records []models.RawPlayerRecord
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		log.Warn().Msg("Page contained no player records")
	}
	return records, nil
}

func (p *Pipeline) fail(start time.Time, phase string, err error) error {
	metrics.RecordError(phase)
	metrics.RecordSync("error", time.Since(start).Seconds())
	return &PhaseError{Phase: phase, Err: crerr.WithStack(err)}
}
