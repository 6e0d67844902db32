// Package agent provides the pluggable decision-logic layer: the capability
// interface the router invokes each turn, a factory registry mapping declared
// type names to constructors, and the built-in decision types.
package agent

import (
	"context"

	"github.com/multibot-games/pacrouter/internal/game/state"
)

// GameView is the read-only world projection decision logic sees each turn.
// *state.GameState satisfies it.
type GameView interface {
	MapSize() (width, height int)
	AgentID() int
	AgentPosition(id int) (state.Position, bool)
	FragileAgent(id int) bool
	KnownIDs() []int
	Walls() []state.Position
	FoodPositions() []state.Position
	AllyIDs() []int
	EnemyIDs() []int
	Eater() bool
	Iteration() int
}

// Agent is a live decision-logic instance bound to one agent id.
//
// Implementations are driven from the router's single thread of control and
// need not be safe for concurrent use. Instances that hold external
// resources should also implement io.Closer; the router closes a replaced
// instance before discarding it.
type Agent interface {
	// ChooseAction picks the next action given the current world view, the
	// previously executed action, the reward signal, the legal action set,
	// and the test-mode flag.
	ChooseAction(ctx context.Context, view GameView, lastAction state.Action, reward float64, legal []state.Action, testMode bool) (state.Action, error)

	// BehaviorCount returns the number of decision invocations since the
	// last reset.
	BehaviorCount() int
	// ResetBehaviorCount drains the counter to zero.
	ResetBehaviorCount()

	// Policy returns the current policy blob.
	Policy() ([]byte, error)
	// SetPolicy overwrites the policy blob.
	SetPolicy(policy []byte) error
}

// InstanceConfig parameterises a new Agent instance.
type InstanceConfig struct {
	AgentID  int
	AllyIDs  []int
	EnemyIDs []int
}

// Factory constructs an Agent from an InstanceConfig.
type Factory func(cfg InstanceConfig) (Agent, error)

// behaviorCounter is the shared counter implementation embedded by the
// built-in decision types.
type behaviorCounter struct {
	count int
}

// BehaviorCount returns the invocation count since the last reset.
func (b *behaviorCounter) BehaviorCount() int { return b.count }

// ResetBehaviorCount drains the counter to zero.
func (b *behaviorCounter) ResetBehaviorCount() { b.count = 0 }

func (b *behaviorCounter) noteBehavior() { b.count++ }
