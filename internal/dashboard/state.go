// Package dashboard holds the application state and the cache-first refresh
// orchestration that keeps it current.
package dashboard

import (
	"time"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/ai"
	"github.com/tsops/pulseboard/internal/clickup"
	"github.com/tsops/pulseboard/internal/snapshot"
)

// Scope selects what a refresh covers: the all-spaces home view or one
// space's detail view.
type Scope string

const (
	ScopeHome   Scope = "home"
	ScopeDetail Scope = "detail"
)

// State is the single application-state structure the UI consumes. All
// mutations go through the pure transition methods below, so the lifecycle is
// testable without a rendering layer. A transition returns a new value; the
// receiver is never modified.
type State struct {
	Scope   Scope  `json:"scope"`
	SpaceID string `json:"space_id,omitempty"`

	Spaces   []clickup.Space     `json:"spaces"`
	Projects []aggregate.Project `json:"projects"`
	Comments []clickup.Comment   `json:"comments,omitempty"`
	Analysis *ai.Analysis        `json:"analysis,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
	// Stale is true while cached data is displayed ahead of a fresh refresh.
	Stale   bool   `json:"stale"`
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

// NewState returns the initial state: home scope, nothing loaded.
func NewState() State {
	return State{Scope: ScopeHome, Loading: true}
}

// CacheLoaded applies a persisted snapshot: render immediately, marked stale,
// while the network refresh runs in the background.
func (s State) CacheLoaded(snap *snapshot.Snapshot) State {
	s.Spaces = snap.Spaces
	s.Projects = snap.Projects
	s.Comments = snap.Comments
	s.LastUpdated = snap.LastUpdated
	s.Stale = true
	s.Loading = false
	return s
}

// RefreshStarted marks a refresh in flight. The loading flag is only raised
// when there is nothing to display yet; with cached data visible, refreshes
// are silent.
func (s State) RefreshStarted() State {
	if len(s.Projects) == 0 {
		s.Loading = true
	}
	s.Err = ""
	return s
}

// RefreshFailed records a fatal refresh error. Prior data, if any, stays
// visible under the error banner.
func (s State) RefreshFailed(err error) State {
	s.Loading = false
	s.Err = err.Error()
	return s
}

// HomeRefreshed applies a completed home-scope refresh. Home scope carries no
// comments or analysis.
func (s State) HomeRefreshed(spaces []clickup.Space, projects []aggregate.Project, at time.Time) State {
	s.Spaces = spaces
	s.Projects = projects
	s.Comments = nil
	s.Analysis = nil
	s.LastUpdated = at
	s.Stale = false
	s.Loading = false
	s.Err = ""
	return s
}

// DetailRefreshed applies a completed detail-scope refresh.
func (s State) DetailRefreshed(spaces []clickup.Space, projects []aggregate.Project, comments []clickup.Comment, at time.Time) State {
	s.Spaces = spaces
	s.Projects = projects
	s.Comments = comments
	s.LastUpdated = at
	s.Stale = false
	s.Loading = false
	s.Err = ""
	return s
}

// AnalysisReady attaches the AI analysis (or its quota fallback).
func (s State) AnalysisReady(a *ai.Analysis) State {
	s.Analysis = a
	return s
}

// AnalysisFailed surfaces a non-quota AI failure as a banner while keeping
// the refreshed data.
func (s State) AnalysisFailed(err error) State {
	s.Err = "AI summary failed: " + err.Error()
	return s
}

// ScopeChanged switches the active scope. Existing data stays visible, marked
// stale, until the next refresh replaces it.
func (s State) ScopeChanged(scope Scope, spaceID string) State {
	s.Scope = scope
	s.SpaceID = spaceID
	s.Stale = true
	s.Err = ""
	if scope == ScopeHome {
		s.SpaceID = ""
		s.Analysis = nil
		s.Comments = nil
	}
	return s
}
