package terminal

import (
	"fmt"
	"strings"

	"github.com/emberdeck/combat-client-go/internal/combat"
)

// logTail is how many log lines the board shows.
const logTail = 6

// Render draws the board for view.
func (c *Console) Render(view combat.SessionView) {
	w := c.out
	name := view.OpponentName
	if name == "" {
		name = "OPPONENT"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %s (HP: %s  SP: %s/%s)  Hand: %d  Deck: %d  Discard: %d\n",
		strings.ToUpper(name), hp(view.Enemy), num(view.Enemy.Stats.SP), num(view.Enemy.Stats.MaxSP),
		len(view.Enemy.Hand), len(view.Enemy.Deck), len(view.Enemy.Discard))
	fmt.Fprintf(w, "║  Effects: %s\n", effects(view.Enemy))
	fmt.Fprintf(w, "║  Field:   %s\n", field(view.Enemy.Field))
	fmt.Fprintln(w, "║──────────────────────────────────────────────────────")
	fmt.Fprintf(w, "║  Field:   %s\n", field(view.Player.Field))
	fmt.Fprintf(w, "║  Effects: %s\n", effects(view.Player))
	fmt.Fprintf(w, "║  YOU (HP: %s  SP: %s/%s)  Deck: %d  Discard: %d\n",
		hp(view.Player), num(view.Player.Stats.SP), num(view.Player.Stats.MaxSP),
		len(view.Player.Deck), len(view.Player.Discard))
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════╝")

	if d := view.Player.Delta; !d.Zero() {
		fmt.Fprintf(w, "Buffs: %s\n", delta(d))
	}

	if len(view.Player.Hand) > 0 {
		selected := make(map[combat.InstanceID]bool, len(view.Selected))
		for _, id := range view.Selected {
			selected[id] = true
		}
		fmt.Fprint(w, "\nHand: ")
		for i, card := range view.Player.Hand {
			mark := " "
			if selected[card.InstanceID] {
				mark = "*"
			}
			fmt.Fprintf(w, "[%d]%s%s (%s)  ", i+1, mark, card.Name, cost(card))
		}
		fmt.Fprintln(w)
		if len(view.Selected) > 0 {
			fmt.Fprintf(w, "Selected cost: %d\n", view.SelectedCost)
		}
	}

	if view.Played != nil {
		names := make([]string, 0, len(view.Played.Cards))
		for _, card := range view.Played.Cards {
			names = append(names, card.Name)
		}
		who := "You played"
		if view.Played.Owner == combat.SideEnemy {
			who = name + " played"
		}
		fmt.Fprintf(w, "\n>> %s: %s", who, strings.Join(names, ", "))
		if view.QueuedBatches > 1 {
			fmt.Fprintf(w, " (+%d more)", view.QueuedBatches-1)
		}
		fmt.Fprintln(w, "  [ok]")
	}

	if len(view.Prompts) > 0 {
		fmt.Fprintln(w, "\nChoose targets:")
		for i, p := range view.Prompts {
			fmt.Fprintf(w, "  %d) %s\n", i+1, slotName(view, p.Prompt))
			for j, opt := range targetOptions(p.Prompt) {
				mark := " "
				if p.Choice == opt {
					mark = "*"
				}
				fmt.Fprintf(w, "     %s%d. %s\n", mark, j+1, combat.LabelTarget(opt, view.Field()))
			}
		}
	}

	lines := view.Log
	if len(lines) > logTail {
		lines = lines[len(lines)-logTail:]
	}
	if len(lines) > 0 {
		fmt.Fprintln(w)
		for _, line := range lines {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if view.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", view.LastError)
	}
	fmt.Fprintln(w, status(view))
}

func status(view combat.SessionView) string {
	switch {
	case view.Gate.OpponentDead:
		return "═══ VICTORY ═══"
	case view.Gate.PlayerDead:
		return "═══ DEFEAT ═══"
	}
	if err := view.Gate.Err(); err != nil {
		return fmt.Sprintf("%s | %s", view.TurnState, err)
	}
	return fmt.Sprintf("%s | Your move", view.TurnState)
}

func slotName(view combat.SessionView, p combat.RetargetPrompt) string {
	for _, slot := range view.Side(p.Owner).Slots {
		if slot.InstanceID == p.InstanceID {
			return slot.Name()
		}
	}
	return string(p.InstanceID)
}

func field(slots []combat.SlotView) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.Empty {
			parts = append(parts, "[ ]")
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s %d]", s.Name, s.TurnsRemaining))
	}
	return strings.Join(parts, " ")
}

func effects(side combat.SideView) string {
	if len(side.Effects) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(side.Effects))
	for _, e := range side.Effects {
		parts = append(parts, fmt.Sprintf("%s(%d)", e.Type, e.Remaining))
	}
	return strings.Join(parts, " ")
}

func delta(d combat.StatDelta) string {
	var parts []string
	add := func(label string, v int) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s %+d", label, v))
		}
	}
	add("ATK", d.AttackPower)
	add("PHY", d.PhysicalPower)
	add("SUP", d.SupernaturalPower)
	return strings.Join(parts, " ")
}

func cost(card combat.CardInstance) string {
	if n, ok := card.Cost(); ok {
		return fmt.Sprintf("%d SP", n)
	}
	return "? SP"
}

func hp(side combat.SideView) string {
	return num(side.HP)
}

func num(o combat.Optional[int]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprint(v)
	}
	return "?"
}
