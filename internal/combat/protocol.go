package combat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Action is the kind of turn submitted to the authority.
type Action string

const (
	ActionSeed   Action = "seed"
	ActionPlay   Action = "play"
	ActionSkip   Action = "skip"
	ActionDefend Action = "defend"
)

// TargetKind distinguishes character and field targets.
type TargetKind string

const (
	TargetCharacter TargetKind = "character"
	TargetField     TargetKind = "field"
)

// TargetRef names what a retargeted ability should hit.
type TargetRef struct {
	Kind       TargetKind `json:"kind"`
	Side       Side       `json:"side,omitempty"`
	InstanceID InstanceID `json:"instanceId,omitempty"`
}

// Validate checks that the reference is well formed.
func (t TargetRef) Validate() error {
	switch t.Kind {
	case TargetCharacter:
		return nil
	case TargetField:
		if !t.Side.Valid() {
			return fmt.Errorf("field target has invalid side %q", t.Side)
		}
		if t.InstanceID == "" {
			return fmt.Errorf("field target has no instance id")
		}
		return nil
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
}

// RetargetPrompt asks the owner of a field card to choose a target.
type RetargetPrompt struct {
	InstanceID InstanceID  `json:"instanceId"`
	Owner      Side        `json:"owner"`
	Options    []TargetRef `json:"options"`
}

// RetargetChoice is a confirmed answer to a prompt.
type RetargetChoice struct {
	Owner      Side       `json:"owner"`
	InstanceID InstanceID `json:"instanceId"`
	TargetRef  TargetRef  `json:"targetRef"`
}

// TurnRequest is the payload submitted for every action. Pile and field
// collections are always sent, empty when nothing is held.
type TurnRequest struct {
	Action          Action                `json:"action"`
	CampaignID      string                `json:"campaignId,omitempty"`
	RoomID          string                `json:"roomId,omitempty"`
	EnemyID         string                `json:"enemyId,omitempty"`
	Seed            bool                  `json:"seed,omitempty"`
	SelectedCards   []InstanceID          `json:"selectedCards"`
	Hand            []CardInstance        `json:"hand"`
	Deck            []CardInstance        `json:"deck"`
	DiscardPile     []CardInstance        `json:"discardPile"`
	EnemyHand       []CardInstance        `json:"enemyHand"`
	EnemyDeck       []CardInstance        `json:"enemyDeck"`
	EnemyDiscard    []CardInstance        `json:"enemyDiscard"`
	OnField         BySide[[]FieldSlot]   `json:"onField"`
	ActiveEffects   BySide[[]EffectEntry] `json:"activeEffects"`
	PlayerStats     *StatsEcho            `json:"playerStats,omitempty"`
	EnemyStats      *StatsEcho            `json:"enemyStats,omitempty"`
	RetargetChoices []RetargetChoice      `json:"retargetChoices"`
}

// SideResult is one side's section of a response. Every member is optional.
type SideResult struct {
	Hand              Optional[[]CardInstance] `json:"hand,omitzero"`
	Deck              Optional[[]CardInstance] `json:"deck,omitzero"`
	Discard           Optional[[]CardInstance] `json:"discard,omitzero"`
	HP                Optional[int]            `json:"hp,omitzero"`
	HPRemaining       Optional[int]            `json:"hpRemaining,omitzero"`
	Vitality          Optional[int]            `json:"vitality,omitzero"`
	SP                Optional[int]            `json:"sp,omitzero"`
	MaxSP             Optional[int]            `json:"maxSp,omitzero"`
	AttackPower       Optional[int]            `json:"attackPower,omitzero"`
	PhysicalPower     Optional[int]            `json:"physicalPower,omitzero"`
	SupernaturalPower Optional[int]            `json:"supernaturalPower,omitzero"`
	Defense           Optional[int]            `json:"defense,omitzero"`
	Speed             Optional[int]            `json:"speed,omitzero"`
	Message           string                   `json:"message,omitempty"`
}

func (r SideResult) piles() PileUpdate {
	return PileUpdate{Deck: r.Deck, Hand: r.Hand, Discard: r.Discard}
}

// LogLines decodes a list of log entries of any JSON type as strings.
type LogLines []string

func (l *LogLines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if s, ok := scalarString(data); ok {
			*l = LogLines{s}
			return nil
		}
		return fmt.Errorf("failed to decode log: %w", err)
	}
	out := make(LogLines, 0, len(raw))
	for _, r := range raw {
		if s, ok := scalarString(r); ok {
			out = append(out, s)
			continue
		}
		out = append(out, string(bytes.TrimSpace(r)))
	}
	*l = out
	return nil
}

// ErrorText decodes an error reported as a string or an object with a message.
type ErrorText string

func (e *ErrorText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) || bytes.Equal(data, []byte("false")) {
		*e = ""
		return nil
	}
	if s, ok := scalarString(data); ok {
		*e = ErrorText(s)
		return nil
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && (obj.Message != "" || obj.Error != "") {
		if obj.Message != "" {
			*e = ErrorText(obj.Message)
		} else {
			*e = ErrorText(obj.Error)
		}
		return nil
	}
	*e = ErrorText(data)
	return nil
}

// TurnResponse is the authority's sparse account of the new state. Absent
// sections leave the local copy unchanged.
type TurnResponse struct {
	Player          Optional[SideResult]            `json:"player,omitzero"`
	Enemy           Optional[SideResult]            `json:"enemy,omitzero"`
	ActiveEffects   Optional[BySide[[]EffectEntry]] `json:"activeEffects,omitzero"`
	OnField         Optional[BySide[[]FieldSlot]]   `json:"onField,omitzero"`
	RetargetPrompts Optional[[]RetargetPrompt]      `json:"retargetPrompts,omitzero"`
	EffectiveStats  Optional[BySide[SideResult]]    `json:"effectiveStats,omitzero"`
	Log             LogLines                        `json:"log,omitempty"`
	Error           ErrorText                       `json:"error,omitempty"`
}

// Side returns the result for side.
func (r TurnResponse) Side(side Side) Optional[SideResult] {
	if side == SideEnemy {
		return r.Enemy
	}
	return r.Player
}

// Keys lists the top-level sections the response carried.
func (r TurnResponse) Keys() []string {
	var keys []string
	add := func(name string, present bool) {
		if present {
			keys = append(keys, name)
		}
	}
	add("player", r.Player.Present())
	add("enemy", r.Enemy.Present())
	add("activeEffects", r.ActiveEffects.Present())
	add("onField", r.OnField.Present())
	add("retargetPrompts", r.RetargetPrompts.Present())
	add("effectiveStats", r.EffectiveStats.Present())
	add("log", len(r.Log) > 0)
	add("error", r.Error != "")
	sort.Strings(keys)
	return keys
}

// DecodeTurnResponse decodes a response body, unwrapping the `result`,
// `data.result` and `data` envelopes authorities may use.
func DecodeTurnResponse(body []byte) (TurnResponse, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return TurnResponse{}, nil
	}
	body = unwrapEnvelope(body, 2)
	var resp TurnResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return TurnResponse{}, fmt.Errorf("failed to decode turn response: %w", err)
	}
	return resp, nil
}

func unwrapEnvelope(body []byte, depth int) []byte {
	if depth == 0 {
		return body
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if inner, ok := env["result"]; ok && isObject(inner) {
		return inner
	}
	if inner, ok := env["data"]; ok && isObject(inner) {
		return unwrapEnvelope(inner, depth-1)
	}
	return body
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
