// Package questclient talks to a remote quest backend that serves the /api collaborator contract.
package questclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banglabot/quest-service/internal/badge"
	"github.com/banglabot/quest-service/internal/platform/apierror"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/region"
)

const defaultTimeout = 10 * time.Second

// StatusError is a non-success response from the backend.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("quest backend status %d", e.StatusCode)
	}
	return fmt.Sprintf("quest backend status %d: %s", e.StatusCode, e.Message)
}

// Client calls the quest backend on behalf of users.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{httpClient: &http.Client{Timeout: defaultTimeout}, baseURL: base}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Quest fetches the quest for a region.
func (c *Client) Quest(ctx context.Context, regionID string) (quest.Quest, error) {
	var q quest.Quest
	err := c.do(ctx, http.MethodGet, "/api/quests/"+url.PathEscape(regionID), "", nil, &q)
	if err != nil {
		var serr *StatusError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return quest.Quest{}, fmt.Errorf("%w: %s", quest.ErrQuestNotFound, regionID)
		}
		return quest.Quest{}, err
	}
	if q.Region == "" {
		q.Region = regionID
	}
	return q, nil
}

// Progress fetches the user's progress map.
func (c *Client) Progress(ctx context.Context, userID string) (progress.Map, error) {
	var body struct {
		Progress progress.Map `json:"progress"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/progress/user", userID, nil, &body); err != nil {
		return nil, err
	}
	if body.Progress == nil {
		body.Progress = progress.Map{}
	}
	return body.Progress, nil
}

// Badges fetches the user's badge collection.
func (c *Client) Badges(ctx context.Context, userID string) ([]badge.Badge, error) {
	var body struct {
		Badges []badge.Badge `json:"badges"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/badges/user", userID, nil, &body); err != nil {
		return nil, err
	}
	return body.Badges, nil
}

// RecordResult reports a finished quest and returns the updated progress and new badges.
func (c *Client) RecordResult(ctx context.Context, userID string, result progress.Result) (progress.Update, error) {
	var upd progress.Update
	if err := c.do(ctx, http.MethodPost, "/api/progress/update", userID, result, &upd); err != nil {
		var serr *StatusError
		if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
			return progress.Update{}, &region.ConfigurationError{Region: result.Region, Err: region.ErrUnknownRegion}
		}
		return progress.Update{}, err
	}
	if upd.NewBadges == nil {
		upd.NewBadges = []badge.Badge{}
	}
	return upd, nil
}

func (c *Client) do(ctx context.Context, method, path, userID string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{StatusCode: resp.StatusCode}
		var envelope apierror.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&envelope); err == nil {
			serr.Code = envelope.Code
			serr.Message = envelope.Message
		}
		return serr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
