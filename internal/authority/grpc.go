package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC method names. Messages are google.protobuf.Struct documents holding
// the same JSON the HTTP transport sends.
const (
	ServiceName       = "combat.v1.Authority"
	MethodPlayTurn    = "/" + ServiceName + "/PlayTurn"
	MethodGetEnemy    = "/" + ServiceName + "/GetEnemy"
	authorizationMeta = "authorization"
)

// GRPCClient calls the authority over gRPC.
type GRPCClient struct {
	conn    *grpc.ClientConn
	token   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGRPCClient creates a client for cfg.GRPCAddress.
func NewGRPCClient(cfg config.AuthorityConfig, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(cfg.GRPCAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GRPCClient{conn: conn, token: cfg.Token, timeout: timeout, logger: logger}, nil
}

// PlayTurn submits a turn.
func (c *GRPCClient) PlayTurn(ctx context.Context, req combat.TurnRequest) (combat.TurnResponse, error) {
	out, err := c.invoke(ctx, MethodPlayTurn, req)
	if err != nil {
		return combat.TurnResponse{}, err
	}
	return combat.DecodeTurnResponse(out)
}

// GetEnemy fetches an opponent document.
func (c *GRPCClient) GetEnemy(ctx context.Context, id string) (combat.OpponentProfile, error) {
	out, err := c.invoke(ctx, MethodGetEnemy, map[string]string{"id": id})
	if err != nil {
		return combat.OpponentProfile{}, err
	}
	return decodeEnemy(out)
}

func (c *GRPCClient) invoke(ctx context.Context, method string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, authorizationMeta, "Bearer "+c.token)
	}

	in, err := toStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	out := &structpb.Struct{}
	started := time.Now()
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	c.logger.Debug("authority call",
		zap.String("method", method),
		zap.Duration("duration", time.Since(started)),
	)
	return protojson.Marshal(out)
}

// Close tears down the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func toStruct(payload any) (*structpb.Struct, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
