// Package terminal is a line-oriented console for playing an encounter.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"go.uber.org/zap"
)

// Console reads commands from in and renders the session to out.
type Console struct {
	session *combat.Session
	in      *bufio.Reader
	out     io.Writer
	logger  *zap.Logger
}

// NewConsole creates a console for session.
func NewConsole(session *combat.Session, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{session: session, in: bufio.NewReader(in), out: out, logger: logger}
}

// Run renders the session and processes commands until quit, end of input,
// or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	c.Render(c.session.View())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, "> ")
		line, err := c.in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if quit := c.Execute(ctx, line); quit {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "q", "quit", "exit":
		return true
	case "h", "help":
		c.printHelp()
		return false
	case "s", "state":
	case "sel", "select":
		err = c.toggle(args)
	case "p", "play":
		err = c.session.Play(ctx)
	case "skip":
		err = c.session.Skip(ctx)
	case "d", "defend":
		err = c.session.Defend(ctx)
	case "t", "target":
		err = c.pick(args)
	case "confirm":
		err = c.session.ConfirmTargets()
	case "cancel":
		err = c.session.CancelTargets()
	case "ok", "ack":
		_, err = c.session.Acknowledge()
	default:
		fmt.Fprintf(c.out, "Unknown command %q. Type help for a list.\n", cmd)
		return false
	}
	if err != nil {
		c.logger.Debug("command failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	c.Render(c.session.View())
	return false
}

func (c *Console) toggle(args []string) error {
	view := c.session.View()
	if len(args) == 0 {
		return fmt.Errorf("usage: select N [N...]")
	}
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 || n > len(view.Player.Hand) {
			return fmt.Errorf("enter a card number between 1 and %d", len(view.Player.Hand))
		}
		if err := c.session.ToggleCard(view.Player.Hand[n-1].InstanceID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) pick(args []string) error {
	view := c.session.View()
	if len(args) != 2 {
		return fmt.Errorf("usage: target PROMPT OPTION")
	}
	p, err := strconv.Atoi(args[0])
	if err != nil || p < 1 || p > len(view.Prompts) {
		return fmt.Errorf("enter a prompt number between 1 and %d", len(view.Prompts))
	}
	prompt := view.Prompts[p-1].Prompt
	options := targetOptions(prompt)
	o, err := strconv.Atoi(args[1])
	if err != nil || o < 1 || o > len(options) {
		return fmt.Errorf("enter an option number between 1 and %d", len(options))
	}
	return c.session.PickTarget(prompt.InstanceID, options[o-1])
}

// targetOptions lists a prompt's choices. A prompt without options may only
// target the opponent.
func targetOptions(p combat.RetargetPrompt) []combat.TargetRef {
	if len(p.Options) == 0 {
		return []combat.TargetRef{{Kind: combat.TargetCharacter}}
	}
	return p.Options
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  state              redraw the board")
	fmt.Fprintln(c.out, "  select N [N...]    toggle hand card N")
	fmt.Fprintln(c.out, "  play               play the selected cards")
	fmt.Fprintln(c.out, "  skip | defend      pass the turn")
	fmt.Fprintln(c.out, "  target P O         answer prompt P with option O")
	fmt.Fprintln(c.out, "  confirm | cancel   send or discard target picks")
	fmt.Fprintln(c.out, "  ok                 dismiss the played-cards banner")
	fmt.Fprintln(c.out, "  quit")
}
