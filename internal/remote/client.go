package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/fieldbook/internal/models"
	"github.com/julianstephens/fieldbook/internal/utils"
)

// HTTPClient talks to a fieldbook synchronization server over its JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for the server at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// StatusError is returned for any non-2xx response that is not a plain 404.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) GetStructure(ctx context.Context, date string) (*models.Journal, error) {
	if !utils.ValidDay(date) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	var journal models.Journal
	if err := c.do(ctx, http.MethodGet, "/v1/structure?date="+url.QueryEscape(date), nil, &journal); err != nil {
		return nil, err
	}
	return &journal, nil
}

func (c *HTTPClient) SaveStructure(ctx context.Context, req SaveStructureRequest) (*models.Journal, error) {
	if !utils.ValidDay(req.CurrentDate) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", req.CurrentDate)
	}
	var journal models.Journal
	if err := c.do(ctx, http.MethodPost, "/v1/structure", req, &journal); err != nil {
		return nil, err
	}
	return &journal, nil
}

func (c *HTTPClient) GetEntry(ctx context.Context, date string) (*models.JournalEntry, error) {
	if !utils.ValidDay(date) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	var entry models.JournalEntry
	if err := c.do(ctx, http.MethodGet, "/v1/entry?date="+url.QueryEscape(date), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) SaveEntry(ctx context.Context, entry *models.JournalEntry) (*models.JournalEntry, error) {
	if !utils.ValidDay(entry.Date) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", entry.Date)
	}
	var saved models.JournalEntry
	if err := c.do(ctx, http.MethodPost, "/v1/entry", entry, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *HTTPClient) GetActions(ctx context.Context) ([]models.Action, error) {
	var actions []models.Action
	if err := c.do(ctx, http.MethodGet, "/v1/actions", nil, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (c *HTTPClient) CreateAction(ctx context.Context, req CreateActionRequest) (*models.Action, error) {
	var action models.Action
	if err := c.do(ctx, http.MethodPost, "/v1/actions/create", req, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

func (c *HTTPClient) RemoveAction(ctx context.Context, id string) error {
	body := map[string]string{"id": id}
	return c.do(ctx, http.MethodPost, "/v1/actions/remove", body, nil)
}

func (c *HTTPClient) RegisterAction(ctx context.Context, req RegisterActionRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/actions/register", req, nil)
}

func (c *HTTPClient) ReorderAction(ctx context.Context, req ReorderActionRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/actions/reorder", req, nil)
}
