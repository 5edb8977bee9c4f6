// Package client is a small HTTP client for the postplanner API, used by
// postctl.
package client

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

	"github.com/google/uuid"

	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

// APIError is a non-2xx answer decoded from the {"error": {...}} envelope.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: "undecodable error body"}
		}
		envelope.Error.Status = resp.StatusCode
		return &envelope.Error
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Availability(ctx context.Context, scheduleID int, date model.Date) ([]model.SlotInstance, error) {
	var out struct {
		Data []model.SlotInstance `json:"data"`
	}
	path := fmt.Sprintf("/schedules/%d/availability?date=%s", scheduleID, url.QueryEscape(date.String()))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// NextGeneratableWeek returns nil when no week within the horizon has room.
func (c *Client) NextGeneratableWeek(ctx context.Context, scheduleID int) (*model.Date, error) {
	var out struct {
		NextWeek *model.Date `json:"next_week"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/schedules/%d/next-generatable-week", scheduleID), nil, &out); err != nil {
		return nil, err
	}
	return out.NextWeek, nil
}

func (c *Client) Generate(ctx context.Context, req service.GenerationRequest) (*model.GenerationJob, error) {
	var out struct {
		Job *model.GenerationJob `json:"job"`
	}
	if err := c.do(ctx, http.MethodPost, "/generation-jobs", req, &out); err != nil {
		return nil, err
	}
	return out.Job, nil
}

func (c *Client) Job(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := c.do(ctx, http.MethodGet, "/generation-jobs/"+id.String(), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ActiveJob returns nil when no job is pending or processing.
func (c *Client) ActiveJob(ctx context.Context) (*model.GenerationJob, error) {
	var job *model.GenerationJob
	if err := c.do(ctx, http.MethodGet, "/generation-jobs/active", nil, &job); err != nil {
		return nil, err
	}
	return job, nil
}

// WaitJob polls the job every interval until it reaches a terminal status.
// onProgress, when set, sees every poll.
func (c *Client) WaitJob(ctx context.Context, id uuid.UUID, interval time.Duration, onProgress func(*model.GenerationJob)) (*model.GenerationJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(job)
		}
		if !job.Status.Active() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Assign(ctx context.Context, req service.AssignRequest) (*model.ScheduledContent, error) {
	var out model.ScheduledContent
	if err := c.do(ctx, http.MethodPost, "/assignments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id int, status model.AssignmentStatus, reason string) (*model.ScheduledContent, error) {
	body := map[string]string{"status": string(status), "failure_reason": reason}
	var out model.ScheduledContent
	if err := c.do(ctx, http.MethodPatch, "/assignments/"+strconv.Itoa(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
