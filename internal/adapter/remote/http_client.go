package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/port"
)

const defaultTimeout = 10 * time.Second

// userIDHeader identifies the cart owner to the remote service. The
// engine never sees credentials; the value comes from the auth layer.
const userIDHeader = "X-User-ID"

// Client talks to the remote cart service over HTTP JSON. It implements
// port.RemoteStore. Failures are reported as *port.RemoteError with the
// endpoint's code and, when a response was received, its HTTP status.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type itemsResponse struct {
	Items []domain.CartItem `json:"items"`
}

type saveRequest struct {
	Items []domain.CartItem `json:"items"`
}

type saveResponse struct {
	Success bool              `json:"success"`
	Items   []domain.CartItem `json:"items"`
}

type syncRequest struct {
	LocalItems  []domain.CartItem `json:"localItems"`
	ServerItems []domain.CartItem `json:"serverItems"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	var out itemsResponse
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out, port.CodeFetchFailed); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) SaveCart(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error) {
	var out saveResponse
	if err := c.do(ctx, http.MethodPut, "/api/cart", saveRequest{Items: items}, &out, port.CodeSaveFailed); err != nil {
		return nil, err
	}
	if out.Items == nil {
		// The server may omit the echo; the submitted items stand.
		return items, nil
	}
	return out.Items, nil
}

func (c *Client) SyncCart(ctx context.Context, local, server []domain.CartItem) ([]domain.CartItem, error) {
	var out itemsResponse
	req := syncRequest{LocalItems: local, ServerItems: server}
	if err := c.do(ctx, http.MethodPost, "/api/cart/sync", req, &out, port.CodeSyncFailed); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, failCode string) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &port.RemoteError{Code: failCode, Detail: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &port.RemoteError{Code: failCode, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, c.userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return &port.RemoteError{Code: port.CodeNetworkError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		code := errResp.Code
		if code == "" {
			code = failCode
		}
		return &port.RemoteError{Code: code, Status: resp.StatusCode, Detail: errResp.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &port.RemoteError{Code: failCode, Status: resp.StatusCode,
			Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
