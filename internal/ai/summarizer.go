// Package ai produces the narrative project-health analysis. The model call
// is a terminal consumer of the pipeline: the dashboard works without it, and
// quota exhaustion degrades to a dedicated fallback payload instead of an
// error banner.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsops/pulseboard/internal/aggregate"
	"github.com/tsops/pulseboard/internal/clickup"
	perrors "github.com/tsops/pulseboard/internal/errors"
)

const (
	defaultBaseURL    = "https://api.anthropic.com/v1"
	apiVersion        = "2023-06-01"
	defaultModel      = "claude-sonnet-4-5"
	defaultMaxTokens  = 2048
	maxFeedComments   = 40
	maxProjectsInline = 30
)

// Analysis is the structured output of one summarization call.
type Analysis struct {
	Summary    string   `json:"summary"`
	TopRisks   []string `json:"topRisks"`
	Actions    []string `json:"actions"`
	EmailDraft string   `json:"emailDraft"`
}

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Summarizer calls the Anthropic Messages API to turn enriched projects and
// the recent-comment feed into an Analysis.
type Summarizer struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    HTTPClient
	logger    zerolog.Logger
}

// Option configures the summarizer.
type Option func(*Summarizer)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(s *Summarizer) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c HTTPClient) Option {
	return func(s *Summarizer) { s.client = c }
}

// WithModel overrides the default model.
func WithModel(m string) Option {
	return func(s *Summarizer) { s.model = m }
}

// NewSummarizer constructs a Summarizer.
func NewSummarizer(apiKey string, logger zerolog.Logger, opts ...Option) *Summarizer {
	s := &Summarizer{
		apiKey:    apiKey,
		model:     defaultModel,
		baseURL:   defaultBaseURL,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
		logger:    logger.With().Str("component", "ai").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ---- wire types ----

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are an operations analyst. Given project health data and recent
comments, reply with a single JSON object and nothing else, shaped as:
{"summary": string, "topRisks": [string], "actions": [string], "emailDraft": string}`

// Summarize produces an Analysis for the given projects and comment feed.
// Quota exhaustion is returned as an error wrapping ErrQuotaExhausted so the
// caller can present the dedicated fallback instead of a generic failure.
func (s *Summarizer) Summarize(ctx context.Context, projects []aggregate.Project, comments []clickup.Comment) (*Analysis, error) {
	req := apiRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemPrompt,
		Messages:  []apiMessage{{Role: "user", Content: buildPrompt(projects, comments)}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status 429: %s", perrors.ErrQuotaExhausted, truncate(string(raw), 200))
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if ar.Error != nil {
		if isQuotaError(ar.Error.Type, ar.Error.Message) {
			return nil, fmt.Errorf("%w: %s: %s", perrors.ErrQuotaExhausted, ar.Error.Type, ar.Error.Message)
		}
		return nil, fmt.Errorf("ai api error %s: %s", ar.Error.Type, ar.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai api status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var text string
	for _, block := range ar.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	analysis := parseAnalysis(text)
	s.logger.Debug().Int("projects", len(projects)).Int("comments", len(comments)).Msg("analysis generated")
	return analysis, nil
}

// quotaTypes are structured error types that mean "out of quota" rather than
// "broken".
var quotaTypes = map[string]bool{
	"rate_limit_error":   true,
	"overloaded_error":   true,
	"quota_exceeded":     true,
	"resource_exhausted": true,
}

// embeddedQuotaJSON matches a JSON fragment embedded inside an error message
// string, e.g. `... {"code":429,"status":"RESOURCE_EXHAUSTED"} ...`. The
// upstream error format is inconsistent, so this is checked in addition to
// the status code and the structured error type.
var embeddedQuotaJSON = regexp.MustCompile(`"(?:code|status)"\s*:\s*(?:"?429"?|"RESOURCE_EXHAUSTED")`)

var quotaWords = regexp.MustCompile(`(?i)\bquota\b|rate.?limit|resource.?exhausted`)

func isQuotaError(errType, message string) bool {
	if quotaTypes[errType] {
		return true
	}
	if embeddedQuotaJSON.MatchString(message) {
		return true
	}
	return quotaWords.MatchString(message)
}

// QuotaFallback is the limited payload shown when the AI quota is exhausted.
func QuotaFallback() *Analysis {
	return &Analysis{
		Summary: "AI analysis is temporarily unavailable: the service quota is exhausted. " +
			"Project data below is current.",
		TopRisks: []string{},
		Actions: []string{
			"Wait a few minutes for the quota to reset",
			"Use manual refresh to retry the analysis",
		},
		EmailDraft: "",
	}
}

// parseAnalysis extracts the JSON object from the model's reply and fills
// safe defaults for empty or malformed fields.
func parseAnalysis(text string) *Analysis {
	var a Analysis
	if err := json.Unmarshal([]byte(extractJSON(text)), &a); err != nil {
		a = Analysis{}
	}
	if a.Summary == "" {
		a.Summary = "No summary available."
	}
	if a.TopRisks == nil {
		a.TopRisks = []string{}
	}
	if a.Actions == nil {
		a.Actions = []string{}
	}
	return &a
}

// extractJSON strips markdown fences and leading/trailing prose around the
// first top-level JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func buildPrompt(projects []aggregate.Project, comments []clickup.Comment) string {
	var b strings.Builder
	b.WriteString("Projects:\n")
	for i, p := range projects {
		if i >= maxProjectsInline {
			fmt.Fprintf(&b, "… and %d more projects\n", len(projects)-i)
			break
		}
		fmt.Fprintf(&b, "- %s [risk=%s] total=%d open=%d done=%d overdue=%d due7d=%d complete=%d%%\n",
			p.Name, p.Risk, p.Stats.TotalTasks, p.Stats.OpenTasks, p.Stats.CompletedTasks,
			p.Stats.OverdueTasks, p.Stats.DueNext7Days, p.Stats.PercentComplete)
	}
	b.WriteString("\nRecent comments (newest first):\n")
	for i, c := range comments {
		if i >= maxFeedComments {
			fmt.Fprintf(&b, "… and %d more comments\n", len(comments)-i)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", c.TaskName, c.User.Username, truncate(c.CommentText, 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
