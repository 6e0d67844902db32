package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/multibot-games/pacrouter/internal/game/state"
)

const defaultSystemPrompt = "You control one agent on a grid. " +
	"Reply with exactly one of the offered action names and nothing else."

// LLMConfig parameterises an LLMAgent.
type LLMConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// LLMAgent asks a language model to pick the next action. The policy blob,
// when set, replaces the built-in system prompt, so a driver can steer the
// model's strategy over the wire.
type LLMAgent struct {
	behaviorCounter
	client *anthropic.Client
	cfg    LLMConfig
	policy []byte
}

// LLMFactory returns a Factory producing LLMAgents.
//
// Precondition: cfg.APIKey and cfg.Model must be set.
func LLMFactory(cfg LLMConfig) Factory {
	return func(_ InstanceConfig) (Agent, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm agent: api key must not be empty")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm agent: model must not be empty")
		}
		if cfg.MaxTokens <= 0 {
			cfg.MaxTokens = 64
		}
		client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
		return &LLMAgent{client: &client, cfg: cfg}, nil
	}
}

// ChooseAction prompts the model with the current view and scans its reply
// for the first legal action name.
func (a *LLMAgent) ChooseAction(ctx context.Context, view GameView, lastAction state.Action, reward float64, legal []state.Action, testMode bool) (state.Action, error) {
	a.noteBehavior()
	if len(legal) == 0 {
		return state.Stop, nil
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildTurnPrompt(view, lastAction, reward, legal, testMode))),
		},
		Temperature: anthropic.Float(a.cfg.Temperature),
	}
	params.System = []anthropic.TextBlockParam{{Text: a.systemPrompt()}}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return state.Stop, fmt.Errorf("llm decision request: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.AsText().Text)
		}
	}

	action, ok := parseActionReply(reply.String(), legal)
	if !ok {
		return state.Stop, fmt.Errorf("llm reply contains no legal action: %q", reply.String())
	}
	return action, nil
}

// Policy returns the prompt override blob.
func (a *LLMAgent) Policy() ([]byte, error) { return a.policy, nil }

// SetPolicy installs a prompt override blob.
func (a *LLMAgent) SetPolicy(policy []byte) error {
	a.policy = policy
	return nil
}

func (a *LLMAgent) systemPrompt() string {
	if len(a.policy) > 0 {
		return string(a.policy)
	}
	return defaultSystemPrompt
}

// buildTurnPrompt renders the view as a compact text block the model can
// reason over. Only observed agents are listed.
func buildTurnPrompt(view GameView, lastAction state.Action, reward float64, legal []state.Action, testMode bool) string {
	var b strings.Builder
	width, height := view.MapSize()
	fmt.Fprintf(&b, "Map %dx%d. You are agent %d", width, height, view.AgentID())
	if view.Eater() {
		b.WriteString(" (eater)")
	}
	fmt.Fprintf(&b, ".\nLast action: %s. Reward: %g.", lastAction, reward)
	if testMode {
		b.WriteString(" Test mode.")
	}
	b.WriteString("\nAgents:")
	for _, id := range view.KnownIDs() {
		pos, ok := view.AgentPosition(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, " %d@(%d,%d)", id, pos.X, pos.Y)
		if view.FragileAgent(id) {
			b.WriteString("[fragile]")
		}
	}
	fmt.Fprintf(&b, "\nFood at %d cells, %d walls.", len(view.FoodPositions()), len(view.Walls()))
	names := make([]string, len(legal))
	for i, action := range legal {
		names[i] = string(action)
	}
	fmt.Fprintf(&b, "\nChoose one: %s.", strings.Join(names, ", "))
	return b.String()
}

// parseActionReply scans the reply for the first token matching a legal
// action name, case-insensitively.
func parseActionReply(reply string, legal []state.Action) (state.Action, bool) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z')
	})
	for _, field := range fields {
		for _, action := range legal {
			if strings.EqualFold(field, string(action)) {
				return action, true
			}
		}
	}
	return state.Stop, false
}
