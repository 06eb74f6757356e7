package combat

import "go.uber.org/zap"

// DefaultLogLimit is the number of combat log lines kept.
const DefaultLogLimit = 100

// MergeReport summarizes what a merge changed.
type MergeReport struct {
	Keys            []string
	HandReplaced    BySide[bool]
	PromptsReplaced bool
	LogAdded        int
}

// Merger folds authority responses into client state.
type Merger struct {
	local    Side
	logLimit int
	logger   *zap.Logger
}

// NewMerger creates a merger for the given local side.
func NewMerger(local Side, logLimit int, logger *zap.Logger) *Merger {
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{local: local, logLimit: logLimit, logger: logger}
}

// Merge returns the state that results from applying resp to prev. Sections
// the response omits keep their previous value; sections it carries, even
// empty, replace the previous value. prev is not modified.
func (m *Merger) Merge(prev *State, resp TurnResponse) (*State, MergeReport) {
	next := prev.Clone()
	report := MergeReport{Keys: resp.Keys()}

	for _, side := range []Side{SidePlayer, SideEnemy} {
		r, ok := resp.Side(side).Get()
		if !ok {
			continue
		}
		if u := r.piles(); !u.Empty() {
			replaced := next.Piles.ReplaceSide(side, u)
			report.HandReplaced.Set(side, replaced)
		}
		next.Stats.Set(side, mergeStats(next.Stats.Get(side), r))
	}

	if report.HandReplaced.Get(m.local) {
		next.Selected = []InstanceID{}
	} else {
		next.Selected = pruneSelection(next.Selected, next.Piles.Piles(m.local).Hand)
	}

	if resp.ActiveEffects.Present() {
		effects, _ := resp.ActiveEffects.Get()
		next.Effects.Replace(SidePlayer, effects.Player)
		next.Effects.Replace(SideEnemy, effects.Enemy)
	}

	if resp.OnField.Present() {
		field, _ := resp.OnField.Get()
		next.Piles.ReplaceField(SidePlayer, field.Player)
		next.Piles.ReplaceField(SideEnemy, field.Enemy)
	}

	if prompts, ok := resp.RetargetPrompts.Get(); ok {
		next.Prompts = m.ownPrompts(prompts)
		report.PromptsReplaced = true
	}
	next.Choices = []RetargetChoice{}

	player, pok := resp.Player.Get()
	enemy, eok := resp.Enemy.Get()
	if eff, ok := resp.EffectiveStats.Get(); ok && pok && eok {
		next.Delta = BySide[StatDelta]{
			Player: computeDelta(player, eff.Player),
			Enemy:  computeDelta(enemy, eff.Enemy),
		}
	}

	lines := append([]string{}, resp.Log...)
	if pok && player.Message != "" {
		lines = append(lines, "You: "+player.Message)
	}
	if eok && enemy.Message != "" {
		lines = append(lines, "Enemy: "+enemy.Message)
	}
	if len(lines) > 0 {
		next.Log = appendLog(next.Log, lines, m.logLimit)
		report.LogAdded = len(lines)
	}

	m.logger.Debug("merged authority response",
		zap.Strings("keys", report.Keys),
		zap.Bool("player_hand_replaced", report.HandReplaced.Player),
		zap.Bool("enemy_hand_replaced", report.HandReplaced.Enemy),
		zap.Int("prompts", len(next.Prompts)),
	)
	return next, report
}

func (m *Merger) ownPrompts(prompts []RetargetPrompt) []RetargetPrompt {
	out := make([]RetargetPrompt, 0, len(prompts))
	for _, p := range prompts {
		if p.Owner != m.local {
			continue
		}
		p.Options = append([]TargetRef{}, p.Options...)
		out = append(out, p)
	}
	return out
}

func pruneSelection(selected []InstanceID, hand []CardInstance) []InstanceID {
	inHand := make(map[InstanceID]struct{}, len(hand))
	for _, c := range hand {
		inHand[c.InstanceID] = struct{}{}
	}
	out := make([]InstanceID, 0, len(selected))
	for _, id := range selected {
		if _, ok := inHand[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func appendLog(log []string, lines []string, limit int) []string {
	out := append(append([]string{}, log...), lines...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
