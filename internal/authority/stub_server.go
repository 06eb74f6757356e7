package authority

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	savePath = "/api/game/save"
	loadPath = "/api/game/load"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local development only
	},
}

// StubServer exposes a StubEngine over HTTP, WebSocket and gRPC, and keeps
// saved games in memory.
type StubServer struct {
	engine *StubEngine
	token  string
	logger *zap.Logger

	mu    sync.Mutex
	saves map[string]map[string]any
}

// NewStubServer wraps engine. A non-empty token is required as a bearer
// credential on every call.
func NewStubServer(engine *StubEngine, token string, logger *zap.Logger) *StubServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubServer{
		engine: engine,
		token:  token,
		logger: logger,
		saves:  make(map[string]map[string]any),
	}
}

// Handler returns the HTTP and WebSocket routes.
func (s *StubServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+playTurnPath, s.handlePlay)
	mux.HandleFunc("GET "+enemiesPath+"{id}", s.handleEnemy)
	mux.HandleFunc("GET "+loadPath, s.handleLoad)
	mux.HandleFunc("POST "+savePath, s.handleSave)
	mux.HandleFunc("PATCH "+savePath, s.handlePatch)
	mux.HandleFunc("GET /ws", s.handleWS)
	return s.withAuth(mux)
}

func (s *StubServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		if !s.authorized(r.Header.Get("Authorization")) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
		s.logger.Debug("stub request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

func (s *StubServer) authorized(header string) bool {
	return s.token == "" || header == "Bearer "+s.token
}

func (s *StubServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req combat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid turn request: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Resolve(req))
}

func (s *StubServer) handleEnemy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.engine.Enemy(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("enemy %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *StubServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc, ok := s.saves[r.Header.Get("Authorization")]
	var out map[string]any
	if ok {
		out = make(map[string]any, len(doc))
		for k, v := range doc {
			out[k] = v
		}
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no saved game"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *StubServer) handleSave(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid save: " + err.Error()})
		return
	}
	s.mu.Lock()
	s.saves[r.Header.Get("Authorization")] = doc
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, doc)
}

// handlePatch merges a partial document. Null deletes a key, as does
// {"$unset": {key: true}}.
func (s *StubServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid patch: " + err.Error()})
		return
	}
	key := r.Header.Get("Authorization")

	s.mu.Lock()
	doc := s.saves[key]
	if doc == nil {
		doc = make(map[string]any)
		s.saves[key] = doc
	}
	for k, v := range patch {
		if k == "$unset" {
			if fields, ok := v.(map[string]any); ok {
				for f := range fields {
					delete(doc, f)
				}
			}
			continue
		}
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *StubServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if err := conn.WriteJSON(s.dispatch(env)); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *StubServer) dispatch(env Envelope) Envelope {
	reply := Envelope{ID: env.ID, Type: MessageResult}
	var out any
	switch env.Type {
	case MessagePlayTurn:
		var req combat.TurnRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return Envelope{ID: env.ID, Type: MessageError, Error: "invalid turn request: " + err.Error()}
		}
		out = s.engine.Resolve(req)
	case MessageGetEnemy:
		var q struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(env.Payload, &q)
		p, ok := s.engine.Enemy(q.ID)
		if !ok {
			return Envelope{ID: env.ID, Type: MessageError, Error: fmt.Sprintf("enemy %q not found", q.ID)}
		}
		out = p
	default:
		return Envelope{ID: env.ID, Type: MessageError, Error: fmt.Sprintf("unknown message type %q", env.Type)}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return Envelope{ID: env.ID, Type: MessageError, Error: err.Error()}
	}
	reply.Payload = data
	return reply
}

// GRPCServer returns a server that answers the Authority service without
// generated stubs.
func (s *StubServer) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnknownServiceHandler(s.handleStream))
	return grpc.NewServer(opts...)
}

func (s *StubServer) handleStream(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if s.token != "" {
		md, _ := metadataFrom(stream)
		if !s.authorized(md) {
			return status.Error(codes.Unauthenticated, "unauthorized")
		}
	}

	in := &structpb.Struct{}
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}

	var out any
	switch method {
	case MethodPlayTurn:
		var req combat.TurnRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid turn request: %v", err)
		}
		out = s.engine.Resolve(req)
	case MethodGetEnemy:
		id := in.GetFields()["id"].GetStringValue()
		p, ok := s.engine.Enemy(id)
		if !ok {
			return status.Errorf(codes.NotFound, "enemy %q not found", id)
		}
		out = p
	default:
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}

	reply, err := toStruct(out)
	if err != nil {
		return status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return stream.SendMsg(reply)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func metadataFrom(stream grpc.ServerStream) (string, bool) {
	md, ok := metadata.FromIncomingContext(stream.Context())
	if !ok {
		return "", false
	}
	values := md.Get(authorizationMeta)
	if len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}
