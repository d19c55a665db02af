package clickup

import (
	"strconv"
	"time"
)

// Space is a ClickUp space within the configured team.
type Space struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Private bool   `json:"private,omitempty"`
}

// Status is a task's status name plus its categorical type
// ("open", "custom" or "closed").
type Status struct {
	Status string `json:"status"`
	Type   string `json:"type"`
	Color  string `json:"color,omitempty"`
}

// ListRef points to the list a task belongs to.
type ListRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderRef points to the folder a task's list belongs to.
// Folderless lists report Hidden=true with an empty ID upstream.
type FolderRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Hidden bool   `json:"hidden,omitempty"`
}

// SpaceRef points to the space a task belongs to.
type SpaceRef struct {
	ID string `json:"id"`
}

// Assignee is a team member assigned to a task.
type Assignee struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	Color          string `json:"color,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Task is an atomic unit of work as returned by the task-listing endpoint.
// All timestamps are millisecond epochs encoded as decimal strings, matching
// the upstream contract. Comments is the only field this system writes: the
// enrichment stage populates it.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	DateCreated string     `json:"date_created"`
	DateUpdated string     `json:"date_updated"`
	DateClosed  string     `json:"date_closed,omitempty"`
	DueDate     string     `json:"due_date,omitempty"`
	StartDate   string     `json:"start_date,omitempty"`
	List        ListRef    `json:"list"`
	Folder      *FolderRef `json:"folder,omitempty"`
	Space       SpaceRef   `json:"space"`
	Assignees   []Assignee `json:"assignees,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
}

// CommentPart is one block of a comment's raw structured body.
type CommentPart struct {
	Text string `json:"text"`
}

// CommentAuthor identifies who wrote a comment.
type CommentAuthor struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Color          string `json:"color,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Comment is a task comment. TaskID and TaskName are not part of the raw API
// payload; the enrichment stage stamps them for downstream display.
type Comment struct {
	ID          string        `json:"id"`
	Parts       []CommentPart `json:"comment"`
	CommentText string        `json:"comment_text"`
	User        CommentAuthor `json:"user"`
	Resolved    bool          `json:"resolved"`
	Date        string        `json:"date"`
	TaskID      string        `json:"task_id,omitempty"`
	TaskName    string        `json:"task_name,omitempty"`
}

type spacesEnvelope struct {
	Spaces []Space `json:"spaces"`
}

type tasksEnvelope struct {
	Tasks []Task `json:"tasks"`
}

type commentsEnvelope struct {
	Comments []Comment `json:"comments"`
}

// ParseMillis parses a string-encoded millisecond epoch. The upstream format
// is a decimal string; anything that fails to parse is treated as missing.
func ParseMillis(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// FormatMillis renders t as the upstream string-encoded millisecond epoch.
func FormatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
