package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/ai"
	"github.com/tsops/pulseboard/internal/clickup"
	"github.com/tsops/pulseboard/internal/snapshot"
)

var at = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, ScopeHome, s.Scope)
	assert.True(t, s.Loading)
	assert.Empty(t, s.Projects)
}

func TestCacheLoaded(t *testing.T) {
	snap := &snapshot.Snapshot{
		Spaces:      []clickup.Space{{ID: "s1"}},
		Projects:    []aggregate.Project{{ID: "p1"}},
		LastUpdated: at,
	}
	s := NewState().CacheLoaded(snap)
	assert.True(t, s.Stale)
	assert.False(t, s.Loading)
	assert.Len(t, s.Projects, 1)
	assert.Equal(t, at, s.LastUpdated)
}

func TestRefreshStarted_SilentWithCachedData(t *testing.T) {
	s := NewState().CacheLoaded(&snapshot.Snapshot{Projects: []aggregate.Project{{ID: "p1"}}})
	s = s.RefreshStarted()
	assert.False(t, s.Loading)

	empty := State{}.RefreshStarted()
	assert.True(t, empty.Loading)
}

func TestRefreshFailed_KeepsData(t *testing.T) {
	s := NewState().CacheLoaded(&snapshot.Snapshot{Projects: []aggregate.Project{{ID: "p1"}}})
	s = s.RefreshFailed(errors.New("boom"))
	assert.Equal(t, "boom", s.Err)
	assert.Len(t, s.Projects, 1)
	assert.False(t, s.Loading)
}

func TestHomeRefreshed_ClearsDetailData(t *testing.T) {
	s := State{
		Comments: []clickup.Comment{{ID: "c1"}},
		Analysis: &ai.Analysis{Summary: "old"},
		Err:      "previous error",
		Stale:    true,
	}
	s = s.HomeRefreshed([]clickup.Space{{ID: "s1"}}, []aggregate.Project{{ID: "p1"}}, at)
	assert.Nil(t, s.Comments)
	assert.Nil(t, s.Analysis)
	assert.Empty(t, s.Err)
	assert.False(t, s.Stale)
	assert.Equal(t, at, s.LastUpdated)
}

func TestDetailRefreshed(t *testing.T) {
	s := State{Scope: ScopeDetail, SpaceID: "s1", Stale: true}
	s = s.DetailRefreshed(nil, []aggregate.Project{{ID: "p1"}}, []clickup.Comment{{ID: "c1"}}, at)
	assert.Len(t, s.Comments, 1)
	assert.False(t, s.Stale)
}

func TestAnalysisTransitions(t *testing.T) {
	s := State{}.AnalysisReady(&ai.Analysis{Summary: "fine"})
	assert.Equal(t, "fine", s.Analysis.Summary)

	s = s.AnalysisFailed(errors.New("model gone"))
	assert.Contains(t, s.Err, "model gone")
	assert.NotNil(t, s.Analysis) // data and prior analysis survive the banner
}

func TestScopeChanged(t *testing.T) {
	s := State{
		Scope:    ScopeDetail,
		SpaceID:  "s1",
		Comments: []clickup.Comment{{ID: "c1"}},
		Analysis: &ai.Analysis{},
	}
	home := s.ScopeChanged(ScopeHome, "ignored")
	assert.Equal(t, ScopeHome, home.Scope)
	assert.Empty(t, home.SpaceID)
	assert.Nil(t, home.Comments)
	assert.Nil(t, home.Analysis)
	assert.True(t, home.Stale)

	detail := home.ScopeChanged(ScopeDetail, "s2")
	assert.Equal(t, "s2", detail.SpaceID)
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	orig := NewState()
	_ = orig.RefreshFailed(errors.New("x"))
	assert.Empty(t, orig.Err)
}
