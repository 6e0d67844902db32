package agent

import (
	"context"
	"math/rand"
	"time"

	"github.com/multibot-games/pacrouter/internal/game/state"
)

// RandomAgent chooses uniformly among the legal actions each turn.
type RandomAgent struct {
	behaviorCounter
	rng    *rand.Rand
	policy []byte
}

// RandomFactory returns a Factory producing RandomAgents. Each instance is
// seeded with seed offset by its agent id so distinct agents draw distinct
// streams; a zero seed falls back to the wall clock.
func RandomFactory(seed int64) Factory {
	return func(cfg InstanceConfig) (Agent, error) {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return &RandomAgent{
			rng: rand.New(rand.NewSource(seed + int64(cfg.AgentID))),
		}, nil
	}
}

// ChooseAction draws one of the legal actions. An empty legal set yields Stop.
func (a *RandomAgent) ChooseAction(_ context.Context, _ GameView, _ state.Action, _ float64, legal []state.Action, _ bool) (state.Action, error) {
	a.noteBehavior()
	if len(legal) == 0 {
		return state.Stop, nil
	}
	return legal[a.rng.Intn(len(legal))], nil
}

// Policy returns the stored opaque policy blob.
func (a *RandomAgent) Policy() ([]byte, error) { return a.policy, nil }

// SetPolicy stores the opaque policy blob. Random decisions ignore it.
func (a *RandomAgent) SetPolicy(policy []byte) error {
	a.policy = policy
	return nil
}
