package assetlinesdk

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
	"time"
)

// Client is a minimal Assetline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type Line struct {
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	IsAvailable bool   `json:"is_available,omitempty"`
}

type Approval struct {
	Seq          int    `json:"seq"`
	ApproverID   string `json:"approver_id"`
	ApproverRole string `json:"approver_role"`
	Decision     string `json:"decision"`
	Comment      string `json:"comment,omitempty"`
	DecidedAt    string `json:"decided_at"`
}

// Request is a borrow request with its lines and approval log.
type Request struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	ManagerID   string     `json:"manager_id"`
	Status      string     `json:"status"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Comment     string     `json:"comment,omitempty"`
	Lines       []Line     `json:"lines"`
	Approvals   []Approval `json:"approvals"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	ReturnedAt  *string    `json:"returned_at,omitempty"`
}

type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CategoryID  string `json:"category_id,omitempty"`
	IsAvailable bool   `json:"is_available"`
	UpdatedAt   string `json:"updated_at"`
}

type Me struct {
	ActorID string   `json:"actor_id"`
	Name    string   `json:"name"`
	Grade   string   `json:"grade,omitempty"`
	Roles   []string `json:"roles"`
	Source  string   `json:"source"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateRequestInput is the body of CreateRequest. The requester is the
// authenticated caller.
type CreateRequestInput struct {
	ManagerID string `json:"manager_id"`
	Lines     []Line `json:"lines"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Comment   string `json:"comment,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ErrorCode returns the envelope code of an *APIError, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// CreateRequest creates a borrow request. A non-empty idempotencyKey makes a
// replay of the same call fail with code duplicate_request.
func (c *Client) CreateRequest(ctx context.Context, in CreateRequestInput, idempotencyKey string) (Request, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests", in, headers, &resp)
	return resp, err
}

func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "requests/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) MyRequests(ctx context.Context) ([]Request, error) {
	return c.list(ctx, "requests/mine")
}

func (c *Client) DecideManager(ctx context.Context, id, decision, comment string) (Request, error) {
	return c.decide(ctx, id, "manager-decision", decision, comment)
}

func (c *Client) DecidePIC(ctx context.Context, id, decision, comment string) (Request, error) {
	return c.decide(ctx, id, "pic-decision", decision, comment)
}

func (c *Client) Return(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests/"+url.PathEscape(id)+"/return", nil, nil, &resp)
	return resp, err
}

// PendingManager lists requests waiting for the caller's manager decision.
func (c *Client) PendingManager(ctx context.Context) ([]Request, error) {
	return c.list(ctx, "approvals/pending/manager")
}

func (c *Client) PendingPIC(ctx context.Context) ([]Request, error) {
	return c.list(ctx, "approvals/pending/pic")
}

func (c *Client) Item(ctx context.Context, id string) (Item, error) {
	var resp Item
	err := c.do(ctx, http.MethodGet, "items/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var resp Me
	err := c.do(ctx, http.MethodGet, "me", nil, nil, &resp)
	return resp, err
}

// EventsPage returns a page of the change feed starting after cursor.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("after", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp, err
}

// DevLogin exchanges a user id for a bearer token and keeps it on the client.
func (c *Client) DevLogin(ctx context.Context, actorID string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]string{"actor_id": actorID}, nil, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

func (c *Client) decide(ctx context.Context, id, stage, decision, comment string) (Request, error) {
	body := map[string]string{"decision": decision}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests/"+url.PathEscape(id)+"/"+stage, body, nil, &resp)
	return resp, err
}

func (c *Client) list(ctx context.Context, endpoint string) ([]Request, error) {
	var resp struct {
		Items []Request `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, headers map[string]string, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Error.Code, envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	if basePath == "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + basePath
}
