package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lernio/studysync/internal/record"
)

// ClientConfig configures the HTTP API client.
type ClientConfig struct {
	// BaseURL is the API base, e.g. https://sync.example.com
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Logger for request diagnostics. Nil means a stderr default.
	Logger *log.Logger
}

// Client talks to the cloud store's JSON API. It implements Store.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates an HTTP API client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Wire DTOs. The cloud API uses camelCase field names and a flat ISO-8601
// date for completion; the mapping functions translate to and from the
// internal record shapes, validating at the boundary.

type performanceDTO struct {
	OwnerID        string `json:"ownerId"`
	Subject        string `json:"subject"`
	Chapter        string `json:"chapter"`
	Score          int    `json:"score"`
	CompletedDate  string `json:"completedDate"`
	AssessmentType string `json:"assessmentType,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
}

type goalDTO struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"ownerId"`
	Text        string  `json:"text"`
	IsCompleted bool    `json:"isCompleted"`
	DueDate     *string `json:"dueDate,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

type goalPatchDTO struct {
	Text        *string `json:"text,omitempty"`
	IsCompleted *bool   `json:"isCompleted,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

type achievementDTO struct {
	OwnerID     string `json:"ownerId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Points      int    `json:"points"`
	CreatedAt   string `json:"createdAt"`
}

type questionDTO struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	Subject    string `json:"subject"`
	Chapter    string `json:"chapter,omitempty"`
	Concept    string `json:"concept"`
	Question   string `json:"question"`
	AIResponse string `json:"aiResponse,omitempty"`
	Resolved   bool   `json:"resolved"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// GetPerformance implements Store.
func (c *Client) GetPerformance(ctx context.Context, ownerID string, limit int) ([]*record.PerformanceRecord, error) {
	var dtos []performanceDTO
	if err := c.get(ctx, "getPerformance", "/api/v1/performance", ownerID, limit, &dtos); err != nil {
		return nil, err
	}

	recs := make([]*record.PerformanceRecord, 0, len(dtos))
	for _, d := range dtos {
		completedAt, err := time.Parse(time.RFC3339, d.CompletedDate)
		if err != nil {
			return nil, &RejectedError{Op: "getPerformance", Reason: fmt.Sprintf("bad completedDate %q: %v", d.CompletedDate, err)}
		}
		rec := &record.PerformanceRecord{
			OwnerID:        d.OwnerID,
			Subject:        d.Subject,
			Chapter:        d.Chapter,
			Score:          d.Score,
			CompletedAt:    completedAt,
			AssessmentType: d.AssessmentType,
			Difficulty:     d.Difficulty,
		}
		if err := rec.Validate(); err != nil {
			return nil, &RejectedError{Op: "getPerformance", Reason: err.Error()}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// SavePerformance implements Store.
func (c *Client) SavePerformance(ctx context.Context, rec *record.PerformanceRecord) error {
	dto := performanceDTO{
		OwnerID:        rec.OwnerID,
		Subject:        rec.Subject,
		Chapter:        rec.Chapter,
		Score:          rec.Score,
		CompletedDate:  rec.CompletedAt.UTC().Format(time.RFC3339),
		AssessmentType: rec.AssessmentType,
		Difficulty:     rec.Difficulty,
	}
	return c.send(ctx, "savePerformance", http.MethodPost, "/api/v1/performance", dto)
}

// GetStudyGoals implements Store.
func (c *Client) GetStudyGoals(ctx context.Context, ownerID string) ([]*record.StudyGoal, error) {
	var dtos []goalDTO
	if err := c.get(ctx, "getStudyGoals", "/api/v1/goals", ownerID, 0, &dtos); err != nil {
		return nil, err
	}

	goals := make([]*record.StudyGoal, 0, len(dtos))
	for _, d := range dtos {
		createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			return nil, &RejectedError{Op: "getStudyGoals", Reason: fmt.Sprintf("bad createdAt %q: %v", d.CreatedAt, err)}
		}
		goal := &record.StudyGoal{
			ID:        d.ID,
			OwnerID:   d.OwnerID,
			Text:      d.Text,
			Completed: d.IsCompleted,
			CreatedAt: createdAt,
		}
		if d.DueDate != nil {
			if t, err := time.Parse(time.RFC3339, *d.DueDate); err == nil {
				goal.DueAt = &t
			}
		}
		if err := goal.Validate(); err != nil {
			return nil, &RejectedError{Op: "getStudyGoals", Reason: err.Error()}
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// SaveStudyGoal implements Store.
func (c *Client) SaveStudyGoal(ctx context.Context, goal *record.StudyGoal) error {
	dto := goalDTO{
		ID:          goal.ID,
		OwnerID:     goal.OwnerID,
		Text:        goal.Text,
		IsCompleted: goal.Completed,
		CreatedAt:   goal.CreatedAt.UTC().Format(time.RFC3339),
	}
	if goal.DueAt != nil {
		due := goal.DueAt.UTC().Format(time.RFC3339)
		dto.DueDate = &due
	}
	return c.send(ctx, "saveStudyGoal", http.MethodPost, "/api/v1/goals", dto)
}

// UpdateStudyGoal implements Store.
func (c *Client) UpdateStudyGoal(ctx context.Context, id string, patch GoalPatch) error {
	dto := goalPatchDTO{
		Text:        patch.Text,
		IsCompleted: patch.Completed,
	}
	if patch.DueAt != nil {
		due := patch.DueAt.UTC().Format(time.RFC3339)
		dto.DueDate = &due
	}
	return c.send(ctx, "updateStudyGoal", http.MethodPatch, "/api/v1/goals/"+url.PathEscape(id), dto)
}

// GetAchievements implements Store.
func (c *Client) GetAchievements(ctx context.Context, ownerID string) ([]*record.Achievement, error) {
	var dtos []achievementDTO
	if err := c.get(ctx, "getAchievements", "/api/v1/achievements", ownerID, 0, &dtos); err != nil {
		return nil, err
	}

	achievements := make([]*record.Achievement, 0, len(dtos))
	for _, d := range dtos {
		createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			return nil, &RejectedError{Op: "getAchievements", Reason: fmt.Sprintf("bad createdAt %q: %v", d.CreatedAt, err)}
		}
		a := &record.Achievement{
			OwnerID:     d.OwnerID,
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Points:      d.Points,
			CreatedAt:   createdAt,
		}
		if err := a.Validate(); err != nil {
			return nil, &RejectedError{Op: "getAchievements", Reason: err.Error()}
		}
		achievements = append(achievements, a)
	}
	return achievements, nil
}

// SaveAchievement implements Store.
func (c *Client) SaveAchievement(ctx context.Context, a *record.Achievement) error {
	dto := achievementDTO{
		OwnerID:     a.OwnerID,
		Title:       a.Title,
		Description: a.Description,
		Icon:        a.Icon,
		Points:      a.Points,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
	}
	return c.send(ctx, "saveAchievement", http.MethodPost, "/api/v1/achievements", dto)
}

// GetQuestions implements Store.
func (c *Client) GetQuestions(ctx context.Context, ownerID string, limit int) ([]*record.Question, error) {
	var dtos []questionDTO
	if err := c.get(ctx, "getQuestions", "/api/v1/questions", ownerID, limit, &dtos); err != nil {
		return nil, err
	}

	questions := make([]*record.Question, 0, len(dtos))
	for _, d := range dtos {
		q := &record.Question{
			ID:       d.ID,
			OwnerID:  d.OwnerID,
			Subject:  d.Subject,
			Chapter:  d.Chapter,
			Concept:  d.Concept,
			Text:     d.Question,
			Response: d.AIResponse,
			Resolved: d.Resolved,
		}
		if d.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
				q.CreatedAt = t
			}
		}
		if err := q.Validate(); err != nil {
			return nil, &RejectedError{Op: "getQuestions", Reason: err.Error()}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// SaveQuestion implements Store.
func (c *Client) SaveQuestion(ctx context.Context, q *record.Question) error {
	dto := questionDTO{
		ID:         q.ID,
		OwnerID:    q.OwnerID,
		Subject:    q.Subject,
		Chapter:    q.Chapter,
		Concept:    q.Concept,
		Question:   q.Text,
		AIResponse: q.Response,
		Resolved:   q.Resolved,
	}
	if !q.CreatedAt.IsZero() {
		dto.CreatedAt = q.CreatedAt.UTC().Format(time.RFC3339)
	}
	return c.send(ctx, "saveQuestion", http.MethodPost, "/api/v1/questions", dto)
}

// get performs an owner-scoped list request and decodes the JSON array.
func (c *Client) get(ctx context.Context, op, path, ownerID string, limit int, out any) error {
	u, err := url.Parse(c.config.BaseURL + path)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	query := u.Query()
	query.Set("ownerId", ownerID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// send performs a write request with a JSON body.
func (c *Client) send(ctx context.Context, op, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &RejectedError{Op: op, Reason: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	return c.checkStatus(op, resp)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

// checkStatus classifies the response: 2xx ok, 4xx rejection, anything else
// a transport-level failure (the write may not have been durably refused).
func (c *Client) checkStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RejectedError{Op: op, Status: resp.StatusCode, Reason: string(body)}
	default:
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}
