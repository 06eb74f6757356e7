package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func exchange(seq int, action combat.Action, hp int) combat.TurnExchange {
	return combat.TurnExchange{
		SessionID: "s-1",
		Seq:       seq,
		Action:    action,
		Request: combat.TurnRequest{
			Action:        action,
			SelectedCards: []combat.InstanceID{"1"},
		},
		Response: combat.TurnResponse{
			Player: combat.Some(combat.SideResult{HP: combat.Some(hp)}),
			Log:    combat.LogLines{"You skip."},
		},
		View: combat.SessionView{
			SessionID: "s-1",
			TurnState: "idle",
			Player:    combat.SideView{HP: combat.Some(hp)},
			Log:       []string{"You skip."},
		},
		StartedAt: time.Unix(1700000000, 0),
		Duration:  25 * time.Millisecond,
	}
}

func TestRecorderSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, false, zaptest.NewLogger(t))

	_, err := rec.Save()
	require.Error(t, err, "nothing recorded yet")

	rec.RecordTurn(exchange(1, combat.ActionSkip, 90))
	failed := exchange(2, combat.ActionPlay, 90)
	failed.Err = "POST /api/game/play failed: boom"
	rec.RecordTurn(failed)

	path, err := rec.Save()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "s-1.journal"), path)

	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s-1", j.SessionID)
	require.Equal(t, 2, j.Size())

	first, err := j.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, "skip", first.Action)
	assert.Equal(t, 25*time.Millisecond, first.Duration)
	assert.Equal(t, []string{"You skip."}, first.Log)

	req, err := first.DecodeRequest()
	require.NoError(t, err)
	assert.Equal(t, []combat.InstanceID{"1"}, req.SelectedCards)
	resp, err := first.DecodeResponse()
	require.NoError(t, err)
	player, ok := resp.Player.Get()
	require.True(t, ok)
	assert.Equal(t, 90, player.HP.ValueOr(0))

	second, err := j.Next()
	require.NoError(t, err)
	assert.Equal(t, "POST /api/game/play failed: boom", second.Err)
	assert.Empty(t, second.Response)
	resp, err = second.DecodeResponse()
	require.NoError(t, err)
	assert.False(t, resp.Player.IsSet())

	_, err = j.Next()
	assert.Error(t, err)
	back, err := j.Previous()
	require.NoError(t, err)
	assert.Equal(t, 1, back.Seq)
	_, err = j.Previous()
	assert.Error(t, err)
}

func TestRecorderAutosave(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, true, zaptest.NewLogger(t))
	rec.RecordTurn(exchange(1, combat.ActionSkip, 100))

	j, err := Load(filepath.Join(dir, "s-1.journal"))
	require.NoError(t, err)
	assert.Equal(t, 1, j.Size())

	rec.RecordTurn(exchange(2, combat.ActionDefend, 95))
	j, err = Load(filepath.Join(dir, "s-1.journal"))
	require.NoError(t, err)
	assert.Equal(t, 2, j.Size())
}

func TestJournalKeepsExplicitNulls(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, false, zaptest.NewLogger(t))

	ex := exchange(1, combat.ActionSkip, 90)
	resp, err := combat.DecodeTurnResponse([]byte(`{"activeEffects":null,"log":["Effects fade."]}`))
	require.NoError(t, err)
	ex.Response = resp
	rec.RecordTurn(ex)

	path, err := rec.Save()
	require.NoError(t, err)
	j, err := Load(path)
	require.NoError(t, err)
	e, err := j.Start()
	require.NoError(t, err)

	got, err := e.DecodeResponse()
	require.NoError(t, err)
	assert.True(t, got.ActiveEffects.Present(), "null clears effects and must survive the journal")
	assert.False(t, got.ActiveEffects.IsSet())
	assert.False(t, got.OnField.Present())
	assert.False(t, got.Player.Present())
}

func TestLoadRejectsMissingAndCorrupt(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.journal"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(t.TempDir(), "bad.journal")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEmptyJournalCursor(t *testing.T) {
	j := New("empty")
	_, err := j.Start()
	assert.Error(t, err)
	assert.Equal(t, 0, j.Size())
}

func TestChecksumIgnoresSelectionAndLog(t *testing.T) {
	a := exchange(1, combat.ActionSkip, 80).View
	b := a
	b.Selected = []combat.InstanceID{"7"}
	b.Log = append([]string{"older line"}, a.Log...)
	assert.Equal(t, Checksum(a), Checksum(b))

	c := a
	c.Player.HP = combat.Some(79)
	assert.NotEqual(t, Checksum(a), Checksum(c))

	d := a
	d.Enemy.Hand = []combat.CardInstance{{InstanceID: "2"}, {InstanceID: "3"}}
	e := a
	e.Enemy.Hand = []combat.CardInstance{{InstanceID: "3"}, {InstanceID: "2"}}
	assert.NotEqual(t, Checksum(d), Checksum(e), "pile order counts")

	f := a
	f.Player.Effects = []combat.EffectEntry{{Type: "Guard", Remaining: 1}, {Type: "Freeze", Remaining: 2}}
	g := a
	g.Player.Effects = []combat.EffectEntry{{Type: "Freeze", Remaining: 2}, {Type: "Guard", Remaining: 1}}
	assert.Equal(t, Checksum(f), Checksum(g), "effect order does not")

	assert.Len(t, Checksum(a), 64)
}

func TestVerify(t *testing.T) {
	rec := NewRecorder(t.TempDir(), false, nil)
	ex := exchange(1, combat.ActionSkip, 50)
	rec.RecordTurn(ex)

	entry, err := rec.Journal().Start()
	require.NoError(t, err)
	assert.True(t, Verify(entry, ex.View))

	ex.View.Enemy.HP = combat.Some(1)
	assert.False(t, Verify(entry, ex.View))
}
