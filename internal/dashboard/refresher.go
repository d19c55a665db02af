package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/ai"
	"github.com/tsops/pulseboard/internal/clickup"
	perrors "github.com/tsops/pulseboard/internal/errors"
	"github.com/tsops/pulseboard/internal/metrics"
	"github.com/tsops/pulseboard/internal/requestid"
	"github.com/tsops/pulseboard/internal/snapshot"
)

// TaskSource provides spaces and tasks (the ClickUp client in production).
type TaskSource interface {
	Spaces(ctx context.Context) ([]clickup.Space, error)
	TeamTasks(ctx context.Context, spaceID string) ([]clickup.Task, error)
}

// Enricher attaches recent comments to projects.
type Enricher interface {
	Enrich(ctx context.Context, projects []aggregate.Project, now time.Time) ([]aggregate.Project, []clickup.Comment)
}

// Summarizer produces the AI analysis. May be absent.
type Summarizer interface {
	Summarize(ctx context.Context, projects []aggregate.Project, comments []clickup.Comment) (*ai.Analysis, error)
}

// SnapshotStore persists refresh results best-effort.
type SnapshotStore interface {
	Save(snap *snapshot.Snapshot) error
	Load() (*snapshot.Snapshot, bool)
}

// Deps are the refresher's collaborators. Summarizer and Metrics may be nil.
type Deps struct {
	Source     TaskSource
	Enricher   Enricher
	Store      SnapshotStore
	Summarizer Summarizer
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Option configures the refresher.
type Option func(*Refresher)

// WithInterval sets the periodic refresh interval.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) { r.interval = d }
}

// WithRules sets the space visibility rules.
func WithRules(rules []aggregate.VisibilityRule) Option {
	return func(r *Refresher) { r.rules = rules }
}

// WithClock injects the time source (for testing).
func WithClock(clock func() time.Time) Option {
	return func(r *Refresher) { r.clock = clock }
}

// Refresher drives the data lifecycle: cache-first startup, scope-aware
// refreshes and the periodic silent re-run. Refreshes cannot be cancelled
// once started; concurrent runs race and the last writer wins, an accepted
// inconsistency window.
type Refresher struct {
	source     TaskSource
	enricher   Enricher
	store      SnapshotStore
	summarizer Summarizer
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	rules    []aggregate.VisibilityRule
	interval time.Duration
	clock    func() time.Time

	mu    sync.RWMutex
	state State
}

// New creates a Refresher with the default 5-minute interval and the built-in
// visibility rules.
func New(deps Deps, opts ...Option) *Refresher {
	r := &Refresher{
		source:     deps.Source,
		enricher:   deps.Enricher,
		store:      deps.Store,
		summarizer: deps.Summarizer,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With().Str("component", "refresher").Logger(),
		rules:      aggregate.DefaultVisibilityRules(),
		interval:   5 * time.Minute,
		clock:      time.Now,
		state:      NewState(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns a copy of the current application state.
func (r *Refresher) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetScope switches the active scope. The caller triggers the follow-up
// refresh.
func (r *Refresher) SetScope(scope Scope, spaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = r.state.ScopeChanged(scope, spaceID)
}

// Start runs the data lifecycle until ctx is cancelled: load the persisted
// snapshot for instant display, refresh over the network in the background,
// then re-run the active scope on every tick, skipping AI summarization on
// unattended refreshes.
func (r *Refresher) Start(ctx context.Context) {
	if snap, ok := r.store.Load(); ok {
		r.mu.Lock()
		r.state = r.state.CacheLoaded(snap)
		r.mu.Unlock()
		r.logger.Info().
			Int("projects", len(snap.Projects)).
			Time("last_updated", snap.LastUpdated).
			Msg("serving cached snapshot while refreshing")
	}

	r.Refresh(ctx, false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("refresher stopped")
			return
		case <-ticker.C:
			r.Refresh(ctx, false)
		}
	}
}

// Refresh re-runs the active scope. manual refreshes include AI
// summarization in the detail scope; periodic ones skip it. The run is
// logged under the context's correlation ID: API-triggered refreshes
// inherit the HTTP request's ID, ticker runs mint their own.
func (r *Refresher) Refresh(ctx context.Context, manual bool) {
	runID := requestid.From(ctx)

	r.mu.Lock()
	r.state = r.state.RefreshStarted()
	scope, spaceID := r.state.Scope, r.state.SpaceID
	r.mu.Unlock()

	start := r.clock()
	var err error
	if scope == ScopeDetail {
		err = r.refreshDetail(ctx, spaceID, manual)
	} else {
		err = r.refreshHome(ctx)
	}

	status := "ok"
	if err != nil {
		status = "error"
		r.mu.Lock()
		r.state = r.state.RefreshFailed(err)
		r.mu.Unlock()
		r.logger.Error().Err(err).Str("scope", string(scope)).Str("request_id", runID).Msg("refresh failed")
	} else {
		r.logger.Debug().Str("scope", string(scope)).Str("request_id", runID).Bool("manual", manual).Msg("refresh complete")
	}
	if r.metrics != nil {
		r.metrics.RecordRefresh(string(scope), status)
		r.metrics.ObserveRefreshDuration(string(scope), r.clock().Sub(start).Seconds())
	}
}

// refreshHome fetches and aggregates the whole team. Comments are not
// persisted in this scope: re-enriching 30 days of history for every folder
// globally is too expensive.
func (r *Refresher) refreshHome(ctx context.Context) error {
	spaces, err := r.source.Spaces(ctx)
	if err != nil {
		return err
	}
	tasks, err := r.source.TeamTasks(ctx, "")
	if err != nil {
		return err
	}

	now := r.clock()
	projects := aggregate.FilterProjects(aggregate.BuildProjects(tasks, now), spaces, r.rules)
	r.persist(&snapshot.Snapshot{Spaces: spaces, Projects: projects, LastUpdated: now})

	r.mu.Lock()
	r.state = r.state.HomeRefreshed(spaces, projects, now)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ProjectsCurrent.Set(float64(len(projects)))
	}
	return nil
}

// refreshDetail fetches one space, runs full enrichment and, when requested,
// the AI summarization.
func (r *Refresher) refreshDetail(ctx context.Context, spaceID string, withAI bool) error {
	spaces, err := r.source.Spaces(ctx)
	if err != nil {
		return err
	}
	tasks, err := r.source.TeamTasks(ctx, spaceID)
	if err != nil {
		return err
	}

	now := r.clock()
	projects := aggregate.FilterProjects(aggregate.BuildProjects(tasks, now), spaces, r.rules)
	projects, feed := r.enricher.Enrich(ctx, projects, now)
	r.persist(&snapshot.Snapshot{Spaces: spaces, Projects: projects, Comments: feed, LastUpdated: now})

	r.mu.Lock()
	r.state = r.state.DetailRefreshed(spaces, projects, feed, now)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ProjectsCurrent.Set(float64(len(projects)))
	}

	if !withAI || r.summarizer == nil {
		return nil
	}

	analysis, aiErr := r.summarizer.Summarize(ctx, projects, feed)
	r.mu.Lock()
	switch {
	case aiErr == nil:
		r.state = r.state.AnalysisReady(analysis)
	case perrors.IsQuota(aiErr):
		r.state = r.state.AnalysisReady(ai.QuotaFallback())
	default:
		r.state = r.state.AnalysisFailed(aiErr)
		if r.metrics != nil {
			r.metrics.RecordError("ai", "summarize")
		}
	}
	r.mu.Unlock()
	return nil
}

// persist saves the snapshot best-effort: a failure (e.g. storage quota) is
// logged and prior cached state stays in place.
func (r *Refresher) persist(snap *snapshot.Snapshot) {
	if err := r.store.Save(snap); err != nil {
		r.logger.Warn().Err(err).Msg("snapshot save failed, keeping previous cache")
		if r.metrics != nil {
			r.metrics.RecordError("snapshot", "save")
		}
	}
}
