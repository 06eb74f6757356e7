package mcp

import (
	"context"
	"errors"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools adds all encounter tools to the MCP server.
func RegisterTools(s *server.MCPServer, ts *ToolSession) {
	s.AddTool(getStateTool(), handleGetState(ts))
	s.AddTool(selectCardTool(), handleSelectCard(ts))
	s.AddTool(submitTurnTool(), handleSubmitTurn(ts))
	s.AddTool(pickTargetTool(), handlePickTarget(ts))
	s.AddTool(confirmTargetsTool(), handleConfirmTargets(ts))
	s.AddTool(cancelTargetsTool(), handleCancelTargets(ts))
	s.AddTool(acknowledgePlayedTool(), handleAcknowledgePlayed(ts))
}

// --- Tool definitions ---

func getStateTool() mcp.Tool {
	return mcp.NewTool("get_state",
		mcp.WithDescription("Get the encounter state and the events raised since the last call. Never changes the encounter, but consumes the pending events so the next call only reports newer ones."),
	)
}

func selectCardTool() mcp.Tool {
	return mcp.NewTool("select_card",
		mcp.WithDescription("Toggle a card in the player's hand in or out of the selection. At most two cards may be selected and their total SP cost must be affordable."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("0-based index into state.player.hand")),
	)
}

func submitTurnTool() mcp.Tool {
	return mcp.NewTool("submit_turn",
		mcp.WithDescription("Submit the turn. 'play' sends the selected cards; 'skip' and 'defend' pass. Blocked while frozen, while a combatant is defeated, or while target prompts are open."),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum(string(combat.ActionPlay), string(combat.ActionSkip), string(combat.ActionDefend)),
			mcp.Description("play, skip or defend")),
	)
}

func pickTargetTool() mcp.Tool {
	return mcp.NewTool("pick_target",
		mcp.WithDescription("Choose a target for an open retarget prompt. Use confirm_targets once every prompt has a pick."),
		mcp.WithNumber("prompt", mcp.Required(), mcp.Description("0-based index into state.prompts")),
		mcp.WithNumber("option", mcp.Required(), mcp.Description("0-based index into the prompt's options; a prompt without options accepts only 0 (the opponent)")),
	)
}

func confirmTargetsTool() mcp.Tool {
	return mcp.NewTool("confirm_targets",
		mcp.WithDescription("Confirm the picked targets. They are sent with the next submitted turn."),
	)
}

func cancelTargetsTool() mcp.Tool {
	return mcp.NewTool("cancel_targets",
		mcp.WithDescription("Discard the open retarget prompts and any picks."),
	)
}

func acknowledgePlayedTool() mcp.Tool {
	return mcp.NewTool("acknowledge_played",
		mcp.WithDescription("Dismiss the played-cards batch in state.played, revealing the next queued one."),
	)
}

// --- Tool handlers ---

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func handleGetState(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handleSelectCard(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hand := ts.session.View().Player.Hand
		index := request.GetInt("index", -1)
		if index < 0 || index >= len(hand) {
			return mcp.NewToolResultErrorf("Invalid index %d. Hand has %d card(s).", index, len(hand)), nil
		}
		if err := ts.session.ToggleCard(hand[index].InstanceID); err != nil {
			return mcp.NewToolResultErrorf("Cannot select %s: %v", hand[index].Name, err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handleSubmitTurn(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var err error
		switch action := combat.Action(request.GetString("action", "")); action {
		case combat.ActionPlay:
			err = ts.session.Play(ctx)
		case combat.ActionSkip:
			err = ts.session.Skip(ctx)
		case combat.ActionDefend:
			err = ts.session.Defend(ctx)
		default:
			return mcp.NewToolResultErrorf("Unknown action %q. Use play, skip or defend.", action), nil
		}
		if err != nil {
			var aerr *combat.AuthorityError
			if errors.As(err, &aerr) {
				// The failure is already in the log; return the state so the
				// agent sees piles were left untouched.
				resp := ts.response()
				return mcp.NewToolResultErrorf("Turn failed: %v\n%s", err, respondJSON(resp)), nil
			}
			return mcp.NewToolResultErrorf("Turn rejected: %v", err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handlePickTarget(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompts := ts.session.View().Prompts
		if len(prompts) == 0 {
			return mcp.NewToolResultError("No retarget prompts are open."), nil
		}
		p := request.GetInt("prompt", -1)
		if p < 0 || p >= len(prompts) {
			return mcp.NewToolResultErrorf("Invalid prompt %d. Must be 0-%d.", p, len(prompts)-1), nil
		}
		prompt := prompts[p].Prompt
		options := prompt.Options
		if len(options) == 0 {
			options = []combat.TargetRef{{Kind: combat.TargetCharacter}}
		}
		o := request.GetInt("option", -1)
		if o < 0 || o >= len(options) {
			return mcp.NewToolResultErrorf("Invalid option %d. Must be 0-%d.", o, len(options)-1), nil
		}
		if err := ts.session.PickTarget(prompt.InstanceID, options[o]); err != nil {
			return mcp.NewToolResultErrorf("Cannot pick target: %v", err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handleConfirmTargets(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := ts.session.ConfirmTargets(); err != nil {
			return mcp.NewToolResultErrorf("Cannot confirm targets: %v", err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handleCancelTargets(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := ts.session.CancelTargets(); err != nil {
			return mcp.NewToolResultErrorf("Cannot cancel targets: %v", err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}

func handleAcknowledgePlayed(ts *ToolSession) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := ts.session.Acknowledge(); err != nil {
			return mcp.NewToolResultErrorf("Nothing to acknowledge: %v", err), nil
		}
		return mcp.NewToolResultText(respondJSON(ts.response())), nil
	}
}
