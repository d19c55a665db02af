// Package aggregate groups raw ClickUp tasks into projects and computes
// project-health statistics and risk. Everything here is pure: no I/O, and
// "now" is threaded in once per run so a pass is internally consistent and
// tests can inject a clock.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tsops/pulseboard/internal/clickup"
)

// RiskLevel classifies a project's health.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// dueSoonWindow is the look-ahead used for the "due soon" count and the
// medium-risk rule.
const dueSoonWindow = 7 * 24 * time.Hour

// Stats is a project's task-count block.
// Invariants: OpenTasks+CompletedTasks == TotalTasks; OverdueTasks and
// DueNext7Days are disjoint subsets of OpenTasks.
type Stats struct {
	TotalTasks      int `json:"total_tasks"`
	OpenTasks       int `json:"open_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	OverdueTasks    int `json:"overdue_tasks"`
	DueNext7Days    int `json:"due_next_7_days"`
	PercentComplete int `json:"percent_complete"`
}

// Project is the aggregation unit: a folder, or a standalone list when the
// list has no folder. Rebuilt wholesale on every refresh; its ID is the
// folder id or the list id and is unique within one aggregation run.
type Project struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	FolderName    string            `json:"folder_name,omitempty"`
	SpaceID       string            `json:"space_id"`
	Tasks         []clickup.Task    `json:"tasks"`
	Stats         Stats             `json:"stats"`
	Risk          RiskLevel         `json:"risk_level"`
	Comments      []clickup.Comment `json:"comments,omitempty"`
	LatestComment *clickup.Comment  `json:"latest_comment,omitempty"`
}

// IsClosed reports whether a task counts as completed. The categorical status
// type is authoritative, but some workspaces configure custom statuses with an
// "open" type and a terminal name, so "complete"/"closed" names count too.
func IsClosed(t clickup.Task) bool {
	if t.Status.Type == "closed" {
		return true
	}
	switch strings.ToLower(t.Status.Status) {
	case "complete", "closed":
		return true
	}
	return false
}

// BuildProjects groups tasks into projects and computes stats and risk.
// Tasks with no list reference are skipped. The result is sorted by risk
// (high first), then by descending open-task count.
func BuildProjects(tasks []clickup.Task, now time.Time) []Project {
	byID := make(map[string]*Project)
	var order []string

	for _, task := range tasks {
		if task.List.ID == "" {
			continue
		}

		id := task.List.ID
		name := task.List.Name + " (List)"
		folderName := ""
		if task.Folder != nil && task.Folder.ID != "" && !task.Folder.Hidden {
			id = task.Folder.ID
			name = task.Folder.Name
			folderName = task.Folder.Name
		}

		p, ok := byID[id]
		if !ok {
			p = &Project{ID: id, Name: name, FolderName: folderName, SpaceID: task.Space.ID}
			byID[id] = p
			order = append(order, id)
		}
		p.Tasks = append(p.Tasks, task)
		addToStats(&p.Stats, task, now)
	}

	projects := make([]Project, 0, len(order))
	for _, id := range order {
		p := byID[id]
		finalizeStats(&p.Stats)
		p.Risk = classifyRisk(p.Stats)
		projects = append(projects, *p)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		ri, rj := riskRank(projects[i].Risk), riskRank(projects[j].Risk)
		if ri != rj {
			return ri > rj
		}
		return projects[i].Stats.OpenTasks > projects[j].Stats.OpenTasks
	})
	return projects
}

func addToStats(s *Stats, task clickup.Task, now time.Time) {
	s.TotalTasks++
	if IsClosed(task) {
		s.CompletedTasks++
		return
	}
	s.OpenTasks++

	due, ok := clickup.ParseMillis(task.DueDate)
	if !ok {
		return
	}
	switch {
	case due.Before(now):
		s.OverdueTasks++
	case !due.After(now.Add(dueSoonWindow)):
		s.DueNext7Days++
	}
}

func finalizeStats(s *Stats) {
	if s.TotalTasks == 0 {
		return
	}
	s.PercentComplete = int(math.Round(float64(s.CompletedTasks) / float64(s.TotalTasks) * 100))
}

// classifyRisk derives the three-value risk level from the stats block:
// anything overdue is high; otherwise due-soon work with completion under
// 50% is medium; otherwise low.
func classifyRisk(s Stats) RiskLevel {
	switch {
	case s.OverdueTasks > 0:
		return RiskHigh
	case s.DueNext7Days > 0 && s.PercentComplete < 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

func riskRank(r RiskLevel) int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}
