package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope types exchanged over the WebSocket transport.
const (
	MessagePlayTurn = "play_turn"
	MessageGetEnemy = "get_enemy"
	MessageResult   = "result"
	MessageError    = "error"
)

// ErrConnectionClosed is returned for calls pending when the socket drops.
var ErrConnectionClosed = errors.New("authority connection closed")

// Envelope is one WebSocket frame. Replies echo the request ID.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WSClient multiplexes request/reply calls over one WebSocket connection.
type WSClient struct {
	url     string
	token   string
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Envelope

	writeMu sync.Mutex
}

// NewWSClient creates a client; the connection is dialed on first use.
func NewWSClient(cfg config.AuthorityConfig, logger *zap.Logger) *WSClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WSClient{
		url:     cfg.WSURL,
		token:   cfg.Token,
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
		pending: make(map[string]chan Envelope),
	}
}

// PlayTurn submits a turn and waits for the correlated reply.
func (c *WSClient) PlayTurn(ctx context.Context, req combat.TurnRequest) (combat.TurnResponse, error) {
	reply, err := c.call(ctx, MessagePlayTurn, req)
	if err != nil {
		return combat.TurnResponse{}, err
	}
	return combat.DecodeTurnResponse(reply.Payload)
}

// GetEnemy fetches an opponent document.
func (c *WSClient) GetEnemy(ctx context.Context, id string) (combat.OpponentProfile, error) {
	reply, err := c.call(ctx, MessageGetEnemy, map[string]string{"id": id})
	if err != nil {
		return combat.OpponentProfile{}, err
	}
	return decodeEnemy(reply.Payload)
}

func (c *WSClient) call(ctx context.Context, kind string, payload any) (Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return Envelope{}, err
	}

	id := uuid.NewString()
	ch := make(chan Envelope, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	err = conn.WriteJSON(Envelope{ID: id, Type: kind, Payload: data})
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn, err)
		return Envelope{}, fmt.Errorf("%s failed: %w", kind, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return Envelope{}, fmt.Errorf("%s failed: %w", kind, ErrConnectionClosed)
		}
		if reply.Type == MessageError {
			return Envelope{}, fmt.Errorf("%s failed: %s", kind, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return Envelope{}, fmt.Errorf("%s failed: %w", kind, ctx.Err())
	}
}

func (c *WSClient) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial authority: %w", err)
	}
	c.conn = conn
	go c.readLoop(conn)

	c.logger.Info("authority socket connected", zap.String("url", c.url))
	return conn, nil
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.drop(conn, err)
			return
		}
		// Delivery happens under mu so drop cannot close ch mid-send.
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			select {
			case ch <- env:
			default:
			}
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping uncorrelated frame",
				zap.String("id", env.ID),
				zap.String("type", env.Type),
			)
		}
	}
}

// drop forgets conn and fails every pending call.
func (c *WSClient) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[string]chan Envelope)
	c.mu.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		close(ch)
	}
	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		c.logger.Debug("authority socket closed", zap.Error(cause))
	}
}

// Close shuts the connection down.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.drop(conn, nil)
	return nil
}
