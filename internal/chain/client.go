package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swapledger/internal/model"
)

// Client talks to the external inscription indexer that serves module events.
type Client struct {
	baseURL  string
	moduleID string
	http     *http.Client
}

// EventPage is one page of events starting at the requested cursor.
type EventPage struct {
	Events []*model.OpEvent
	Total  uint64
}

// NewClient creates a client for the indexer at baseURL.
func NewClient(baseURL, moduleID string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("source url is required")
	}
	if moduleID == "" {
		return nil, fmt.Errorf("module id is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		moduleID: moduleID,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}

type response[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type eventList struct {
	Total uint64            `json:"total"`
	List  []json.RawMessage `json:"list"`
}

// FetchEvents returns up to size events starting at cursor.
func (c *Client) FetchEvents(ctx context.Context, cursor uint64, size int) (*EventPage, error) {
	q := url.Values{}
	q.Set("cursor", strconv.FormatUint(cursor, 10))
	q.Set("size", strconv.Itoa(size))
	path := "/v1/modules/" + url.PathEscape(c.moduleID) + "/events?" + q.Encode()

	var data eventList
	if err := c.get(ctx, "events", path, &data); err != nil {
		return nil, err
	}

	page := &EventPage{Total: data.Total, Events: make([]*model.OpEvent, 0, len(data.List))}
	for i, raw := range data.List {
		ev, err := model.ParseEvent(raw)
		if err != nil {
			return nil, &FetchError{Op: "events", Err: fmt.Errorf("item %d: %w", i, err)}
		}
		page.Events = append(page.Events, ev)
	}
	return page, nil
}

// BestHeight returns the best known chain height.
func (c *Client) BestHeight(ctx context.Context) (uint32, error) {
	var data struct {
		Height uint32 `json:"height"`
	}
	if err := c.get(ctx, "height", "/v1/chain/height", &data); err != nil {
		return 0, err
	}
	return data.Height, nil
}

// TickDecimals returns the display decimals of a tick.
func (c *Client) TickDecimals(ctx context.Context, tick string) (uint8, error) {
	var data struct {
		Decimal *uint8 `json:"decimal"`
	}
	if err := c.get(ctx, "tick", "/v1/ticks/"+url.PathEscape(tick), &data); err != nil {
		return 0, err
	}
	if data.Decimal == nil {
		return 0, &FetchError{Op: "tick", Err: fmt.Errorf("tick %q has no decimals", tick)}
	}
	return *data.Decimal, nil
}

func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))}
	}

	env := response[json.RawMessage]{}
	if err := json.Unmarshal(body, &env); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Code != 0 {
		return &FetchError{Op: op, Err: fmt.Errorf("source error %d: %s", env.Code, env.Msg)}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
