// Package clickup wraps the ClickUp REST API v2 surface pulseboard consumes:
// space listing, team-wide task listing and per-task comments.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/tsops/pulseboard/internal/errors"
	"github.com/tsops/pulseboard/internal/metrics"
	"github.com/tsops/pulseboard/internal/retry"
)

const (
	// PageSize is the fixed page size of the task-listing endpoint.
	PageSize = 100
	// MaxPages caps pagination so a misbehaving upstream cannot loop us forever.
	MaxPages = 50
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the ClickUp REST API for one team.
type Client struct {
	baseURL    string
	token      string
	teamID     string
	httpClient HTTPClient
	logger     zerolog.Logger

	taskRetry    retry.Config
	commentRetry retry.Config
	metrics      *metrics.Metrics
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTaskRetry overrides the retry budget for space and task-page fetches.
func WithTaskRetry(cfg retry.Config) Option {
	return func(c *Client) { c.taskRetry = cfg }
}

// WithCommentRetry overrides the smaller retry budget for comment fetches.
func WithCommentRetry(cfg retry.Config) Option {
	return func(c *Client) { c.commentRetry = cfg }
}

// WithMetrics enables instrumentation of page fetches and comment failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a ClickUp API client. baseURL is the API root, normally
// behind the deployment's proxy; token is the personal API token sent as the
// Authorization header.
func NewClient(baseURL, token, teamID string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        token,
		teamID:       teamID,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With().Str("component", "clickup").Logger(),
		taskRetry:    retry.DefaultConfig(),
		commentRetry: retry.FastFailConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get executes one authenticated GET and returns the response body.
// Status handling implements the shared taxonomy: 2xx returns the body,
// 429 and 5xx return a retryable APIError, other 4xx a terminal one.
// A body that looks like an HTML error page is a proxy/gateway failure
// regardless of status and is treated as retryable.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", perrors.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, perrors.NewAPIError("clickup", resp.StatusCode, truncate(string(body), 200))
	}
	if isHTMLBody(body) {
		// CORS proxies have been observed returning their error page with a
		// success status.
		return nil, fmt.Errorf("%w: proxy returned HTML instead of JSON", perrors.ErrUnavailable)
	}
	return body, nil
}

func isHTMLBody(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.HasPrefix(head, []byte("<html"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Spaces returns all non-archived spaces for the configured team. This is
// foundational data: any failure propagates after the retry budget is spent.
func (c *Client) Spaces(ctx context.Context) ([]Space, error) {
	var env spacesEnvelope
	err := retry.Do(ctx, c.taskRetry, func(ctx context.Context) error {
		body, err := c.get(ctx, fmt.Sprintf("/team/%s/space?archived=false", c.teamID))
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &env)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching spaces: %w", err)
	}
	c.logger.Debug().Int("count", len(env.Spaces)).Msg("fetched spaces")
	return env.Spaces, nil
}

// TeamTasks paginates the team task listing, including closed tasks and
// subtasks, optionally scoped to one space. Pagination stops at a short page
// or the MaxPages cap. If a page fails after at least one page succeeded, the
// accumulated tasks are returned rather than discarded; a first-page failure
// propagates.
func (c *Client) TeamTasks(ctx context.Context, spaceID string) ([]Task, error) {
	var tasks []Task
	for page := 0; page < MaxPages; page++ {
		q := url.Values{}
		q.Set("include_closed", "true")
		q.Set("subtasks", "true")
		q.Set("page", strconv.Itoa(page))
		if spaceID != "" {
			q.Set("space_ids[]", spaceID)
		}

		var env tasksEnvelope
		err := retry.Do(ctx, c.taskRetry, func(ctx context.Context) error {
			body, err := c.get(ctx, fmt.Sprintf("/team/%s/task?%s", c.teamID, q.Encode()))
			if err != nil {
				return err
			}
			env = tasksEnvelope{}
			return json.Unmarshal(body, &env)
		})
		if err != nil {
			if page > 0 {
				c.logger.Warn().Err(err).Int("page", page).Int("tasks", len(tasks)).
					Msg("task page failed, returning partial results")
				return tasks, nil
			}
			return nil, fmt.Errorf("fetching tasks page 0: %w", err)
		}

		tasks = append(tasks, env.Tasks...)
		if c.metrics != nil {
			c.metrics.TaskPagesFetched.Inc()
		}
		if len(env.Tasks) < PageSize {
			break
		}
	}
	c.logger.Debug().Int("count", len(tasks)).Str("space_id", spaceID).Msg("fetched team tasks")
	return tasks, nil
}

// TaskComments fetches the comments of one task. Comments are best-effort:
// any failure yields an empty list so enrichment never blocks the pipeline.
func (c *Client) TaskComments(ctx context.Context, taskID string) []Comment {
	var env commentsEnvelope
	err := retry.Do(ctx, c.commentRetry, func(ctx context.Context) error {
		body, err := c.get(ctx, fmt.Sprintf("/task/%s/comment", taskID))
		if err != nil {
			return err
		}
		env = commentsEnvelope{}
		return json.Unmarshal(body, &env)
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("task_id", taskID).Msg("comment fetch failed, skipping")
		if c.metrics != nil {
			c.metrics.CommentFetchFailures.Inc()
		}
		return nil
	}
	return env.Comments
}
