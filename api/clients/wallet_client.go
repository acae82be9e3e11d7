package clients

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

	"github.com/coder/websocket"
	"github.com/ruteri/quorum-wallet/api"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// WalletClient talks to the wallet daemon API.
type WalletClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWalletClient creates a client for the daemon at baseURL. Unlock attempts
// can run for minutes, so if httpClient is nil a client without a timeout is
// used and callers bound requests through their context.
func NewWalletClient(baseURL string, httpClient *http.Client) *WalletClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WalletClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *WalletClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return &RequestError{StatusCode: resp.StatusCode, Err: errors.New(failureReason(path, resp.StatusCode, data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// failureReason prefers the reason field of JSON failures and falls back to
// the plain text body.
func failureReason(path string, code int, body []byte) string {
	var status api.StatusResponse
	if json.Unmarshal(body, &status) == nil && status.Reason != "" {
		return status.Reason
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("%s failed with code %d", path, code)
}

// Modules lists the configured authentication modules.
func (c *WalletClient) Modules(ctx context.Context) ([]interfaces.Descriptor, error) {
	var descriptors []interfaces.Descriptor
	if err := c.do(ctx, http.MethodGet, "/api/modules", nil, &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// ModuleState returns one module's state.
func (c *WalletClient) ModuleState(ctx context.Context, id interfaces.ModuleID) (*api.ModuleStateResponse, error) {
	var state api.ModuleStateResponse
	if err := c.do(ctx, http.MethodGet, "/api/moduleState/"+url.PathEscape(string(id)), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// NextStep advances one module with input.
func (c *WalletClient) NextStep(ctx context.Context, id interfaces.ModuleID, input map[string]string) (*api.NextStepResponse, error) {
	if input == nil {
		input = map[string]string{}
	}
	var step api.NextStepResponse
	if err := c.do(ctx, http.MethodPost, "/api/nextStep/"+url.PathEscape(string(id)), input, &step); err != nil {
		return nil, err
	}
	return &step, nil
}

// Unlock runs an unlock attempt. It blocks until the attempt resolves.
func (c *WalletClient) Unlock(ctx context.Context, req api.UnlockRequest) error {
	return c.do(ctx, http.MethodPost, "/api/unlock", req, nil)
}

// Restore re-provisions the wallet from a mnemonic. The returned enrollment
// outputs are not retrievable again.
func (c *WalletClient) Restore(ctx context.Context, req api.RestoreRequest) (*api.RestoreResponse, error) {
	var resp api.RestoreResponse
	if err := c.do(ctx, http.MethodPost, "/api/restore", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the wallet status.
func (c *WalletClient) Status(ctx context.Context) (*api.WalletStatusResponse, error) {
	var status api.WalletStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/walletStatus", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Lock locks the wallet.
func (c *WalletClient) Lock(ctx context.Context) error {
	var resp api.LockResponse
	if err := c.do(ctx, http.MethodPost, "/api/lockWallet", nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New("lock was not acknowledged")
	}
	return nil
}

// Tap resets the auto-lock countdown.
func (c *WalletClient) Tap(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/tap", nil, nil)
}

// Events streams one topic until ctx is done or the daemon closes the
// stream. The returned channel is closed when streaming stops.
func (c *WalletClient) Events(ctx context.Context, topic interfaces.Topic) (<-chan interfaces.Event, error) {
	u, err := url.Parse(c.baseURL + "/api/events/" + url.PathEscape(string(topic)))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := &websocket.DialOptions{}
	if c.httpClient.Timeout == 0 {
		opts.HTTPClient = c.httpClient
	}
	conn, resp, err := websocket.Dial(dialCtx, u.String(), opts)
	if err != nil {
		if resp != nil {
			return nil, &RequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("subscribe to %s: %w", topic, err)}
		}
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	events := make(chan interfaces.Event)
	go func() {
		defer close(events)
		defer conn.CloseNow()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var event interfaces.Event
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
