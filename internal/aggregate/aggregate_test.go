package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsops/pulseboard/internal/clickup"
)

var now = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func task(id, listID, folderID, folderName, statusType string, due time.Time) clickup.Task {
	t := clickup.Task{
		ID:     id,
		Name:   "task " + id,
		Status: clickup.Status{Status: statusType, Type: statusType},
		List:   clickup.ListRef{ID: listID, Name: "list " + listID},
		Space:  clickup.SpaceRef{ID: "s1"},
	}
	if folderID != "" {
		t.Folder = &clickup.FolderRef{ID: folderID, Name: folderName}
	}
	if !due.IsZero() {
		t.DueDate = clickup.FormatMillis(due)
	}
	return t
}

func TestBuildProjects_ConcreteScenario(t *testing.T) {
	tasks := []clickup.Task{
		task("1", "L1", "F1", "Ops", "closed", time.Time{}),
		task("2", "L1", "F1", "Ops", "open", now.Add(-48*time.Hour)),
	}

	projects := BuildProjects(tasks, now)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "F1", p.ID)
	assert.Equal(t, "Ops", p.Name)
	assert.Equal(t, 2, p.Stats.TotalTasks)
	assert.Equal(t, 1, p.Stats.CompletedTasks)
	assert.Equal(t, 1, p.Stats.OpenTasks)
	assert.Equal(t, 1, p.Stats.OverdueTasks)
	assert.Equal(t, 50, p.Stats.PercentComplete)
	assert.Equal(t, RiskHigh, p.Risk)
}

func TestBuildProjects_StatsInvariants(t *testing.T) {
	tasks := []clickup.Task{
		task("1", "L1", "F1", "Ops", "closed", time.Time{}),
		task("2", "L1", "F1", "Ops", "open", now.Add(2*24*time.Hour)),
		task("3", "L1", "F1", "Ops", "open", now.Add(-time.Hour)),
		task("4", "L1", "F1", "Ops", "open", now.Add(30*24*time.Hour)),
		task("5", "L1", "F1", "Ops", "open", time.Time{}),
	}
	projects := BuildProjects(tasks, now)
	require.Len(t, projects, 1)

	s := projects[0].Stats
	assert.Equal(t, s.TotalTasks, s.OpenTasks+s.CompletedTasks)
	assert.Equal(t, 1, s.OverdueTasks)
	assert.Equal(t, 1, s.DueNext7Days)
	assert.LessOrEqual(t, s.OverdueTasks+s.DueNext7Days, s.OpenTasks)
	assert.Equal(t, 20, s.PercentComplete)
}

func TestBuildProjects_GroupingStable(t *testing.T) {
	a := task("1", "L1", "F1", "Ops", "open", time.Time{})
	b := task("2", "L2", "F1", "Ops", "open", time.Time{})

	p1 := BuildProjects([]clickup.Task{a, b}, now)
	p2 := BuildProjects([]clickup.Task{b, a}, now)
	require.Len(t, p1, 1)
	require.Len(t, p2, 1)
	assert.Equal(t, p1[0].ID, p2[0].ID)
	assert.Len(t, p1[0].Tasks, 2)
}

func TestBuildProjects_FolderlessGroupsByList(t *testing.T) {
	projects := BuildProjects([]clickup.Task{task("1", "L9", "", "", "open", time.Time{})}, now)
	require.Len(t, projects, 1)
	assert.Equal(t, "L9", projects[0].ID)
	assert.Equal(t, "list L9 (List)", projects[0].Name)
	assert.Empty(t, projects[0].FolderName)
}

func TestBuildProjects_HiddenFolderGroupsByList(t *testing.T) {
	tk := task("1", "L9", "", "", "open", time.Time{})
	tk.Folder = &clickup.FolderRef{ID: "", Hidden: true}
	projects := BuildProjects([]clickup.Task{tk}, now)
	require.Len(t, projects, 1)
	assert.Equal(t, "L9", projects[0].ID)
}

func TestBuildProjects_SkipsTasksWithoutList(t *testing.T) {
	tk := clickup.Task{ID: "1", Status: clickup.Status{Type: "open"}}
	assert.Empty(t, BuildProjects([]clickup.Task{tk}, now))
}

func TestBuildProjects_EmptyInput(t *testing.T) {
	assert.Empty(t, BuildProjects(nil, now))
}

func TestBuildProjects_SortByRiskThenOpenCount(t *testing.T) {
	tasks := []clickup.Task{
		// F1: low risk, 1 open
		task("1", "L1", "F1", "A", "open", time.Time{}),
		// F2: high risk
		task("2", "L2", "F2", "B", "open", now.Add(-time.Hour)),
		// F3: low risk, 2 open
		task("3", "L3", "F3", "C", "open", time.Time{}),
		task("4", "L3", "F3", "C", "open", time.Time{}),
		// F4: medium risk (due soon, 0% complete)
		task("5", "L4", "F4", "D", "open", now.Add(24*time.Hour)),
	}
	projects := BuildProjects(tasks, now)
	require.Len(t, projects, 4)
	assert.Equal(t, "F2", projects[0].ID)
	assert.Equal(t, "F4", projects[1].ID)
	assert.Equal(t, "F3", projects[2].ID)
	assert.Equal(t, "F1", projects[3].ID)
}

func TestIsClosed_CustomStatusNames(t *testing.T) {
	for _, tc := range []struct {
		status clickup.Status
		want   bool
	}{
		{clickup.Status{Status: "done", Type: "closed"}, true},
		{clickup.Status{Status: "Complete", Type: "custom"}, true},
		{clickup.Status{Status: "CLOSED", Type: "custom"}, true},
		{clickup.Status{Status: "in progress", Type: "custom"}, false},
		{clickup.Status{Status: "to do", Type: "open"}, false},
	} {
		assert.Equal(t, tc.want, IsClosed(clickup.Task{Status: tc.status}), tc.status.Status)
	}
}

func TestClassifyRisk(t *testing.T) {
	assert.Equal(t, RiskHigh, classifyRisk(Stats{OverdueTasks: 1, DueNext7Days: 3}))
	assert.Equal(t, RiskMedium, classifyRisk(Stats{DueNext7Days: 1, PercentComplete: 49}))
	assert.Equal(t, RiskLow, classifyRisk(Stats{DueNext7Days: 1, PercentComplete: 50}))
	assert.Equal(t, RiskLow, classifyRisk(Stats{PercentComplete: 10}))
	assert.Equal(t, RiskLow, classifyRisk(Stats{}))
}

func TestPercentComplete_ZeroTasks(t *testing.T) {
	var s Stats
	finalizeStats(&s)
	assert.Equal(t, 0, s.PercentComplete)
}

func TestBuildProjects_UnparsableDueDateIgnored(t *testing.T) {
	tk := task("1", "L1", "F1", "Ops", "open", time.Time{})
	tk.DueDate = "garbage"
	projects := BuildProjects([]clickup.Task{tk}, now)
	require.Len(t, projects, 1)
	assert.Zero(t, projects[0].Stats.OverdueTasks)
	assert.Zero(t, projects[0].Stats.DueNext7Days)
	assert.Equal(t, RiskLow, projects[0].Risk)
}
