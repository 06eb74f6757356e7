package authority

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

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPError is a non-2xx reply from the authority.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed: %s", e.Method, e.Path, e.Detail)
}

// HTTPClient talks JSON to the authority's REST API.
type HTTPClient struct {
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPClient creates a client. A nil client gets one bounded by the
// configured timeout.
func NewHTTPClient(cfg config.AuthorityConfig, client *http.Client, logger *zap.Logger) *HTTPClient {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger,
	}
}

// PlayTurn submits a turn and decodes the authority's response.
func (c *HTTPClient) PlayTurn(ctx context.Context, req combat.TurnRequest) (combat.TurnResponse, error) {
	body, err := c.Request(ctx, http.MethodPost, playTurnPath, req)
	if err != nil {
		return combat.TurnResponse{}, err
	}
	return combat.DecodeTurnResponse(body)
}

// GetEnemy fetches an opponent document.
func (c *HTTPClient) GetEnemy(ctx context.Context, id string) (combat.OpponentProfile, error) {
	body, err := c.Request(ctx, http.MethodGet, enemiesPath+url.PathEscape(id), nil)
	if err != nil {
		return combat.OpponentProfile{}, err
	}
	return decodeEnemy(body)
}

// Request sends payload as JSON and returns the raw response body. Non-2xx
// replies become *HTTPError.
func (c *HTTPClient) Request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &HTTPError{Method: method, Path: path, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", method, path, err)
	}

	c.logger.Debug("authority request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Detail: errorDetail(resp.Status, body)}
	}
	return body, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func errorDetail(status string, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(preview(body))
	if text == "" {
		return status
	}
	return status + ": " + text
}
