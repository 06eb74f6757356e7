package journal

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"golang.org/x/crypto/blake2b"
)

// Checksum hashes the parts of a view that the authority controls. Two views
// with the same piles, stats, effects and field produce the same checksum
// regardless of selection or log contents.
func Checksum(view combat.SessionView) string {
	sum := blake2b.Sum256([]byte(representation(view)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether entry's checksum matches view.
func Verify(e *Entry, view combat.SessionView) bool {
	return e.Checksum == Checksum(view)
}

func representation(view combat.SessionView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SESSION:%s|%s|%s|%s\n",
		view.SessionID, view.Encounter.CampaignID, view.Encounter.RoomID, view.Encounter.EnemyID)
	writeSide(&b, "PLAYER", view.Player)
	writeSide(&b, "ENEMY", view.Enemy)

	prompts := make([]string, 0, len(view.Prompts))
	for _, p := range view.Prompts {
		prompts = append(prompts, fmt.Sprintf("%s:%s:%d", p.Prompt.Owner, p.Prompt.InstanceID, len(p.Prompt.Options)))
	}
	sort.Strings(prompts)
	fmt.Fprintf(&b, "PROMPTS:%s\n", strings.Join(prompts, ","))
	return b.String()
}

func writeSide(b *strings.Builder, label string, side combat.SideView) {
	s := side.Stats
	fmt.Fprintf(b, "%s:%s|%s|%s|%s|%s\n", label,
		optInt(side.HP), optInt(s.SP), optInt(s.MaxSP), optInt(s.AttackPower), optInt(s.Defense))
	// Pile order is meaningful, so ids are written as held.
	writePile(b, "DECK", side.Deck)
	writePile(b, "HAND", side.Hand)
	writePile(b, "DISCARD", side.Discard)

	slots := make([]string, 0, len(side.Slots))
	for _, slot := range side.Slots {
		slots = append(slots, fmt.Sprintf("%s:%d", slot.InstanceID, slot.TurnsRemaining))
	}
	fmt.Fprintf(b, "  FIELD:%s\n", strings.Join(slots, ","))

	effects := make([]string, 0, len(side.Effects))
	for _, e := range side.Effects {
		effects = append(effects, fmt.Sprintf("%s:%d:%d", e.Type, e.Power, e.Remaining))
	}
	sort.Strings(effects)
	fmt.Fprintf(b, "  EFFECTS:%s\n", strings.Join(effects, ","))
}

func writePile(b *strings.Builder, label string, cards []combat.CardInstance) {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, string(c.InstanceID))
	}
	fmt.Fprintf(b, "  %s:%s\n", label, strings.Join(ids, ","))
}

func optInt(o combat.Optional[int]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprint(v)
	}
	return "?"
}
