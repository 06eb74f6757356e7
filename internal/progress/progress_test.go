package progress

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/emberdeck/combat-client-go/internal/authority"
	"github.com/emberdeck/combat-client-go/internal/catalog"
	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/emberdeck/combat-client-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSanitizeWhitelists(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"campaignId": "64b000000000000000000001",
		"roomIndex": 3,
		"money": "lots",
		"password": "hunter2",
		"activeEffects": {"player": [{"type": "Guard", "amount": "4", "remaining": 2}]},
		"onField": {"enemy": [{"instanceId": 7, "turnsRemaining": "2", "card": {"name": "Wall"}}]},
		"enemy": {"_id": "wolf", "stats": {"hp": 450, "sp": "2", "speed": 9}, "deck": []}
	}`), &doc))

	g := Sanitize(doc)
	assert.Equal(t, "64b000000000000000000001", g.CampaignID)
	require.NotNil(t, g.RoomIndex)
	assert.Equal(t, 3, *g.RoomIndex)
	assert.Nil(t, g.Money, "non-numeric money is dropped")

	require.NotNil(t, g.ActiveEffects)
	require.Len(t, g.ActiveEffects.Player, 1)
	assert.Equal(t, 4, g.ActiveEffects.Player[0].Power)
	assert.NotNil(t, g.ActiveEffects.Enemy)

	require.NotNil(t, g.OnField)
	require.Len(t, g.OnField.Enemy, 1)
	assert.Equal(t, combat.InstanceID("7"), g.OnField.Enemy[0].InstanceID)
	assert.Equal(t, 2, g.OnField.Enemy[0].TurnsRemaining)
	assert.Equal(t, "Wall", g.OnField.Enemy[0].Name())

	require.NotNil(t, g.Enemy)
	assert.Equal(t, "wolf", g.Enemy.ID)
	assert.Equal(t, EnemyStats{HP: 450, SP: 2, MaxSP: 0}, *g.Enemy.Stats)

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "password")
	assert.NotContains(t, string(out), "speed")
}

func TestSanitizeEmpty(t *testing.T) {
	g := Sanitize(map[string]any{"money": 12.5})
	require.NotNil(t, g.Money)
	assert.Equal(t, 12.5, *g.Money)
	assert.Nil(t, g.Enemy)
	assert.Nil(t, g.OnField)
}

func newStubStore(t *testing.T) *HTTPStore {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	eng := authority.NewStubEngine(cat, rand.New(rand.NewPCG(1, 1)), zaptest.NewLogger(t))
	srv := httptest.NewServer(authority.NewStubServer(eng, "", zaptest.NewLogger(t)).Handler())
	t.Cleanup(srv.Close)

	client := authority.NewHTTPClient(config.AuthorityConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, zaptest.NewLogger(t))
	return NewHTTPStore(client, zaptest.NewLogger(t))
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	store := newStubStore(t)
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing saved yet")

	room := 2
	require.NoError(t, store.Save(ctx, SavedGame{CampaignID: "c1", RoomIndex: &room}))
	require.NoError(t, store.Patch(ctx, map[string]any{"checkpoint": map[string]any{"room": 2}, "money": 40}))

	g, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", g.CampaignID)
	require.NotNil(t, g.Money)
	assert.Equal(t, 40.0, *g.Money)

	require.NoError(t, store.ClearCheckpoint(ctx))
}

func TestHTTPStoreClearCheckpointFallsBackToUnset(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if string(data) == `{"checkpoint":null}` {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"checkpoint must be an object"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := authority.NewHTTPClient(config.AuthorityConfig{BaseURL: srv.URL, Timeout: time.Second}, nil, nil)
	store := NewHTTPStore(client, zaptest.NewLogger(t))
	require.NoError(t, store.ClearCheckpoint(context.Background()))
	assert.Equal(t, []string{`{"checkpoint":null}`, `{"$unset":{"checkpoint":true}}`}, bodies)
}

func TestHTTPStoreClearCheckpointReportsFirstError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusBadRequest)
		if string(data) == `{"checkpoint":null}` {
			_, _ = w.Write([]byte(`{"message":"first"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"second"}`))
	}))
	defer srv.Close()

	client := authority.NewHTTPClient(config.AuthorityConfig{BaseURL: srv.URL, Timeout: time.Second}, nil, nil)
	err := NewHTTPStore(client, nil).ClearCheckpoint(context.Background())
	require.Error(t, err)
	assert.Equal(t, "PATCH /api/game/save failed: first", err.Error())
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	_, ok, err := s.Load(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.ClearCheckpoint(context.Background()))
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("COMBAT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COMBAT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, url, "test-"+t.Name(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Patch(ctx, map[string]any{"checkpoint": map[string]any{"room": 1}}))
	require.NoError(t, store.Save(ctx, SavedGame{CampaignID: "c9"}))
	require.NoError(t, store.ClearCheckpoint(ctx))

	g, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c9", g.CampaignID)
}
