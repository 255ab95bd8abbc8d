package station

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"station-assistant/internal/domain"
)

// Client talks to the station's local HTTP API. Requests are bounded by the
// caller's context and by the client timeout, and are never retried.
type Client struct {
	scheme     string
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		scheme:     "http",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the command to http://<address>/api/command.
func (c *Client) Send(ctx context.Context, address, command string, params domain.Params) error {
	if params == nil {
		params = domain.Params{}
	}

	body, err := json.Marshal(domain.CommandRequest{Command: command, Params: params})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, address, "/api/command", body); err != nil {
		return fmt.Errorf("sending command %s: %w", command, err)
	}

	return nil
}

// Info fetches http://<address>/api/info.
func (c *Client) Info(ctx context.Context, address string) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, address, "/api/info", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching device info: %w", err)
	}

	var info map[string]any
	if err := json.Unmarshal(resp, &info); err != nil {
		return nil, fmt.Errorf("parsing device info: %w", err)
	}

	return info, nil
}

func (c *Client) baseURL(address string) string {
	address = strings.TrimSuffix(address, "/")
	if strings.Contains(address, "://") {
		return address
	}
	return c.scheme + "://" + address
}

func (c *Client) doRequest(ctx context.Context, method, address, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL(address)+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("station API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
