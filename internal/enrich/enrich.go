// Package enrich attaches recent comment activity to aggregated projects.
//
// Candidates are tasks updated within the last 30 days. Their comments are
// fetched in fixed-size chunks: fetches within a chunk run concurrently, a
// chunk never starts before the previous one has fully settled, and a short
// pause between chunks keeps the upstream proxy comfortable. Individual
// fetch failures degrade to an empty list and never fail the pipeline.
package enrich

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/clickup"
	"github.com/tsops/pulseboard/pkg/lru"
)

const (
	defaultChunkSize = 6
	defaultPause     = 50 * time.Millisecond
	defaultWindow    = 30 * 24 * time.Hour
	defaultMemoSize  = 2048
)

// CommentFetcher fetches the comments of one task, returning an empty list on
// any failure.
type CommentFetcher interface {
	TaskComments(ctx context.Context, taskID string) []clickup.Comment
}

// Enricher runs the comment-enrichment pipeline.
type Enricher struct {
	fetcher CommentFetcher
	logger  zerolog.Logger

	chunkSize int
	pause     time.Duration
	window    time.Duration

	// memo skips refetching tasks whose date_updated hasn't moved since the
	// last refresh cycle. Any task change bumps date_updated upstream, so a
	// hit is always current.
	memo *lru.Cache[string, []clickup.Comment]

	sleep func(ctx context.Context, d time.Duration)
}

// Option configures the enricher.
type Option func(*Enricher)

// WithChunkSize sets the per-chunk fetch concurrency.
func WithChunkSize(n int) Option {
	return func(e *Enricher) { e.chunkSize = n }
}

// WithPause sets the delay between chunks.
func WithPause(d time.Duration) Option {
	return func(e *Enricher) { e.pause = d }
}

// WithWindow sets the recent-update window for candidate selection.
func WithWindow(d time.Duration) Option {
	return func(e *Enricher) { e.window = d }
}

// New creates an Enricher with the default chunk size, pause and window.
func New(fetcher CommentFetcher, logger zerolog.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:   fetcher,
		logger:    logger.With().Str("component", "enrich").Logger(),
		chunkSize: defaultChunkSize,
		pause:     defaultPause,
		window:    defaultWindow,
		memo:      lru.New[string, []clickup.Comment](defaultMemoSize),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type candidate struct {
	projectIdx int
	taskIdx    int
	task       clickup.Task
}

// Enrich returns fresh copies of projects with comments attached, plus the
// global recency-sorted comment feed. The input projects are not mutated.
func (e *Enricher) Enrich(ctx context.Context, projects []aggregate.Project, now time.Time) ([]aggregate.Project, []clickup.Comment) {
	out := make([]aggregate.Project, len(projects))
	var candidates []candidate
	cutoff := now.Add(-e.window)

	for i, p := range projects {
		cp := p
		cp.Comments = nil
		cp.LatestComment = nil
		cp.Tasks = make([]clickup.Task, len(p.Tasks))
		copy(cp.Tasks, p.Tasks)
		out[i] = cp

		for j, task := range cp.Tasks {
			cp.Tasks[j].Comments = nil
			updated, ok := clickup.ParseMillis(task.DateUpdated)
			if !ok || updated.Before(cutoff) {
				continue
			}
			candidates = append(candidates, candidate{projectIdx: i, taskIdx: j, task: task})
		}
	}

	results := e.fetchAll(ctx, candidates)

	for i, cand := range candidates {
		comments := results[i]
		if len(comments) == 0 {
			continue
		}
		stamped := make([]clickup.Comment, len(comments))
		for k, cm := range comments {
			cm.TaskID = cand.task.ID
			cm.TaskName = cand.task.Name
			stamped[k] = cm
		}
		p := &out[cand.projectIdx]
		p.Tasks[cand.taskIdx].Comments = stamped
		p.Comments = append(p.Comments, stamped...)
	}

	var feed []clickup.Comment
	for i := range out {
		p := &out[i]
		if len(p.Comments) == 0 {
			continue
		}
		sortCommentsDesc(p.Comments)
		p.LatestComment = &p.Comments[0]
		feed = append(feed, p.Comments...)
	}
	sortCommentsDesc(feed)

	e.logger.Debug().
		Int("candidates", len(candidates)).
		Int("comments", len(feed)).
		Msg("enrichment complete")
	return out, feed
}

// fetchAll resolves comments for all candidates, chunked. Results land in a
// preallocated slice indexed by candidate, so no locking is needed: each
// goroutine writes only its own slot and the WaitGroup orders the writes
// before any read.
func (e *Enricher) fetchAll(ctx context.Context, candidates []candidate) [][]clickup.Comment {
	results := make([][]clickup.Comment, len(candidates))

	for start := 0; start < len(candidates); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			cand := candidates[i]
			key := cand.task.ID + "@" + cand.task.DateUpdated
			if cached, ok := e.memo.Get(key); ok {
				results[i] = cached
				continue
			}

			wg.Add(1)
			go func(i int, cand candidate, key string) {
				defer wg.Done()
				comments := e.fetcher.TaskComments(ctx, cand.task.ID)
				// An empty result is indistinguishable from a failed fetch,
				// so only successful non-empty results are memoized.
				if len(comments) > 0 {
					e.memo.Put(key, comments)
				}
				results[i] = comments
			}(i, cand, key)
		}
		wg.Wait()

		if end < len(candidates) && e.pause > 0 {
			e.sleep(ctx, e.pause)
		}
	}
	return results
}

func sortCommentsDesc(comments []clickup.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		ti, _ := clickup.ParseMillis(comments[i].Date)
		tj, _ := clickup.ParseMillis(comments[j].Date)
		return ti.After(tj)
	})
}
