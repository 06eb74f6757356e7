package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/emberdeck/combat-client-go/internal/authority"
	"go.uber.org/zap"
)

const (
	loadPath = "/api/game/load"
	savePath = "/api/game/save"
)

// HTTPStore keeps the saved game on the authority's REST API.
type HTTPStore struct {
	client *authority.HTTPClient
	logger *zap.Logger
}

// NewHTTPStore creates a store that shares client's base URL and credentials.
func NewHTTPStore(client *authority.HTTPClient, logger *zap.Logger) *HTTPStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStore{client: client, logger: logger}
}

func (s *HTTPStore) Load(ctx context.Context) (SavedGame, bool, error) {
	body, err := s.client.Request(ctx, http.MethodGet, loadPath, nil)
	if err != nil {
		var herr *authority.HTTPError
		if errors.As(err, &herr) && herr.Status == http.StatusNotFound {
			return SavedGame{}, false, nil
		}
		return SavedGame{}, false, err
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return SavedGame{}, false, fmt.Errorf("failed to decode saved game: %w", err)
	}
	if inner, ok := doc["data"].(map[string]any); ok {
		doc = inner
	}
	if doc == nil {
		return SavedGame{}, false, nil
	}
	return Sanitize(doc), true, nil
}

func (s *HTTPStore) Save(ctx context.Context, game SavedGame) error {
	_, err := s.client.Request(ctx, http.MethodPost, savePath, game)
	return err
}

func (s *HTTPStore) Patch(ctx context.Context, fields map[string]any) error {
	_, err := s.client.Request(ctx, http.MethodPatch, savePath, fields)
	return err
}

// ClearCheckpoint removes the checkpoint with a null patch, retrying with
// $unset for APIs that ignore nulls. The first error is the one reported.
func (s *HTTPStore) ClearCheckpoint(ctx context.Context) error {
	err := s.Patch(ctx, map[string]any{"checkpoint": nil})
	if err == nil {
		return nil
	}
	s.logger.Debug("null checkpoint patch rejected, retrying with $unset", zap.Error(err))
	if err2 := s.Patch(ctx, map[string]any{"$unset": map[string]any{"checkpoint": true}}); err2 == nil {
		return nil
	}
	return err
}
