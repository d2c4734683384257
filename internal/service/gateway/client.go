// Package gateway issues the request/response calls against the analysis
// service: session start, session end and intervention chat. Each call is
// a single exchange with no retry; retry policy belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miguelrl/cabina/client/internal/model/session"
)

// ErrServiceUnavailable marks calls that could not reach the server or did
// not receive a valid response from it.
var ErrServiceUnavailable = errors.New("analysis service unavailable")

// BotError is an application-level chat failure reported by a reachable
// server, as opposed to a transport failure.
type BotError struct {
	Message string
}

func (e *BotError) Error() string {
	return fmt.Sprintf("bot error: %s", e.Message)
}

// Client talks to the analysis service REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a gateway client for the given API base URL, e.g.
// "http://localhost:5000/api".
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// StartSession asks the server to open a new analysis session and returns
// the server-assigned session id.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/session/start", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		// A partial or ambiguous response must not be treated as success.
		return "", fmt.Errorf("%w: start response missing session_id", ErrServiceUnavailable)
	}
	return out.SessionID, nil
}

// EndSession closes the given session and returns the server's summary.
// Calling it without an active session id is a contract violation by the
// caller, not a recoverable condition.
func (c *Client) EndSession(ctx context.Context, sessionID string) (session.Summary, error) {
	body := map[string]string{"session_id": sessionID}
	var out struct {
		SessionData session.Summary `json:"session_data"`
	}
	if err := c.post(ctx, "/session/end", body, &out); err != nil {
		return session.Summary{}, err
	}
	return out.SessionData, nil
}

// Chat sends one user message and returns the bot's reply. Transport
// failures surface as ErrServiceUnavailable; failures reported by the bot
// itself surface as *BotError so the caller can label the exchange.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body := map[string]string{"message": message}
	var out struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := c.post(ctx, "/chat", body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", &BotError{Message: out.Error}
	}
	return out.Response, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var reader *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	// 422 carries the bot's own failure for chat calls; everything else
	// outside 2xx means the service did not give a usable answer.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		var appErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&appErr); err != nil || appErr.Error == "" {
			return &BotError{Message: "respuesta inválida del bot"}
		}
		return &BotError{Message: appErr.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}
	return nil
}
