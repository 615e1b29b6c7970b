// Package client talks to the tracking API from Go programs: it submits
// interactions, reads statistics through a short-lived cache and downloads
// exports to disk.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"componentlab/api/models"
)

const DefaultBaseURL = "http://localhost:3001/api"

var (
	ErrTrackInteraction = errors.New("Error al registrar interacción")
	ErrStats            = errors.New("Error al obtener estadísticas")
	ErrExportData       = errors.New("Error al obtener datos de exportación")
	ErrHealth           = errors.New("Error al obtener estado del servidor")
)

// APIError is returned for transport failures and non-2xx answers. It matches
// the operation's sentinel with errors.Is.
type APIError struct {
	Op      error
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Op, e.Err}
	}
	return []error{e.Op}
}

type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*API)

func WithHTTPClient(hc *http.Client) Option {
	return func(a *API) { a.http = hc }
}

func NewAPI(baseURL string, opts ...Option) *API {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetToken sets the bearer token sent to the export endpoints.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) bearer() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) TrackInteraction(ctx context.Context, req models.TrackRequest) (*models.InteractionEvent, error) {
	var resp struct {
		Data models.InteractionEvent `json:"data"`
	}
	if err := a.do(ctx, http.MethodPost, "/components/track", req, false, ErrTrackInteraction, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (a *API) GetStats(ctx context.Context) (*models.StatsSnapshot, error) {
	var resp struct {
		Data models.StatsSnapshot `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/components/stats", nil, false, ErrStats, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (a *API) GetExportView(ctx context.Context, page, limit int) (*models.PagedEvents, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp models.PagedEvents
	if err := a.do(ctx, http.MethodGet, "/components/export/view?"+q.Encode(), nil, true, ErrExportData, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) GetExportData(ctx context.Context) ([]models.ExportRecord, error) {
	var resp struct {
		Data []models.ExportRecord `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/components/export", nil, true, ErrExportData, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type ServiceHealth struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

type Health struct {
	Success   bool                     `json:"success"`
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    float64                  `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
}

// GetHealth reports the server's health. A degraded server answers 503 and
// is returned as an error.
func (a *API) GetHealth(ctx context.Context) (*Health, error) {
	var resp Health
	if err := a.do(ctx, http.MethodGet, "/health", nil, false, ErrHealth, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) do(ctx context.Context, method, path string, body any, auth bool, op error, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+a.bearer())
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &failure)
		return &APIError{Op: op, Status: resp.StatusCode, Message: failure.Message}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
