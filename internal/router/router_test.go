package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/multibot-games/pacrouter/internal/comm"
	"github.com/multibot-games/pacrouter/internal/game/agent"
	"github.com/multibot-games/pacrouter/internal/game/state"
)

// fakeMessenger queues incoming messages and records replies.
type fakeMessenger struct {
	incoming []comm.Message
	sent     []comm.Message
	sendErr  error
}

func (f *fakeMessenger) Receive() (comm.Message, error) {
	if len(f.incoming) == 0 {
		return nil, io.EOF
	}
	msg := f.incoming[0]
	f.incoming = f.incoming[1:]
	return msg, nil
}

func (f *fakeMessenger) Send(msg comm.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

// scriptedAgent is a controllable decision-logic instance.
type scriptedAgent struct {
	label     string
	action    state.Action
	chooseErr error
	count     int
	policy    []byte
	closed    bool
	cfg       agent.InstanceConfig
}

func (a *scriptedAgent) ChooseAction(_ context.Context, _ agent.GameView, _ state.Action, _ float64, _ []state.Action, _ bool) (state.Action, error) {
	a.count++
	if a.chooseErr != nil {
		return state.Stop, a.chooseErr
	}
	return a.action, nil
}

func (a *scriptedAgent) BehaviorCount() int            { return a.count }
func (a *scriptedAgent) ResetBehaviorCount()           { a.count = 0 }
func (a *scriptedAgent) Policy() ([]byte, error)       { return a.policy, nil }
func (a *scriptedAgent) SetPolicy(policy []byte) error { a.policy = policy; return nil }
func (a *scriptedAgent) Close() error                  { a.closed = true; return nil }

// scriptedFactory registers a factory producing scriptedAgents and exposes
// the constructed instances.
func scriptedFactory(label string, action state.Action, made *[]*scriptedAgent) agent.Factory {
	return func(cfg agent.InstanceConfig) (agent.Agent, error) {
		a := &scriptedAgent{label: label, action: action, cfg: cfg}
		if made != nil {
			*made = append(*made, a)
		}
		return a, nil
	}
}

// recordingSession wraps a real session and records predicted ids.
type recordingSession struct {
	Session
	predicted []int
}

func (s *recordingSession) PredictAgent(id int, action state.Action) {
	s.predicted = append(s.predicted, id)
	s.Session.PredictAgent(id, action)
}

func newTestController(t *testing.T, msgr comm.Messenger, cfg Config) (*Controller, *[]*scriptedAgent) {
	t.Helper()
	made := &[]*scriptedAgent{}
	registry := agent.NewRegistry()
	require.NoError(t, registry.Register("stopper", scriptedFactory("stopper", state.Stop, made)))
	require.NoError(t, registry.Register("norther", scriptedFactory("norther", state.North, made)))

	c, err := New(msgr, registry, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, made
}

func dispatchAll(t *testing.T, c *Controller, msgs ...comm.Message) {
	t.Helper()
	for _, msg := range msgs {
		require.NoError(t, c.Dispatch(context.Background(), msg))
	}
}

func lastSent(t *testing.T, f *fakeMessenger) comm.Message {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func TestNewValidation(t *testing.T) {
	registry := agent.NewRegistry()
	logger := zaptest.NewLogger(t)

	_, err := New(nil, registry, Config{}, logger)
	assert.ErrorIs(t, err, ErrNilMessenger)

	_, err = New(&fakeMessenger{}, nil, Config{}, logger)
	assert.ErrorIs(t, err, ErrNilRegistry)

	c, err := New(&fakeMessenger{}, registry, Config{}, logger)
	require.NoError(t, err)
	assert.Equal(t, state.Stop, c.LastAction())
}

func TestRegisterAcksAndOverwrites(t *testing.T) {
	f := &fakeMessenger{}
	c, made := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.RegisterMessage{AgentID: 1, Team: "ghost", AgentType: "norther"},
		comm.InitMessage{AgentID: 1},
	)

	require.Len(t, f.sent, 3)
	for _, msg := range f.sent {
		assert.Equal(t, comm.AckMessage{}, msg)
	}

	// The overwrite wins: the instance comes from the second registration.
	require.Len(t, *made, 1)
	assert.Equal(t, "norther", (*made)[0].label)
}

func TestInitRequiresRegistration(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c, comm.InitMessage{AgentID: 9})

	reply, ok := lastSent(t, f).(comm.ErrorMessage)
	require.True(t, ok, "expected error reply, got %T", lastSent(t, f))
	assert.Equal(t, CodeLookupFailure, reply.Code)
}

func TestInitUnknownTypeFailsRequest(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "psychic"},
		comm.InitMessage{AgentID: 1},
	)

	reply, ok := lastSent(t, f).(comm.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownType, reply.Code)
}

func TestInitReplacesInstanceAndResetsCounter(t *testing.T) {
	f := &fakeMessenger{}
	c, made := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		comm.StateMessage{AgentID: 1, LegalActions: []state.Action{state.Stop}},
	)
	require.Len(t, *made, 1)
	require.Equal(t, 1, (*made)[0].BehaviorCount())

	dispatchAll(t, c,
		comm.InitMessage{AgentID: 1},
		comm.RequestBehaviorCountMessage{AgentID: 1},
	)

	// The old instance is released, the new one starts at zero.
	require.Len(t, *made, 2)
	assert.True(t, (*made)[0].closed)
	assert.Equal(t, comm.BehaviorCountMessage{Count: 0}, lastSent(t, f))
}

func TestEpisodeCounterMonotonicAcrossInits(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	var iterations []int
	c.newSession = func(cfg state.Config) (Session, error) {
		iterations = append(iterations, cfg.Iteration)
		return state.New(cfg)
	}

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
	)

	assert.Equal(t, []int{0, 1, 2}, iterations)
}

func TestGameStartRequiresInstance(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
	)

	reply, ok := lastSent(t, f).(comm.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, CodeLookupFailure, reply.Code)
}

func TestGameStartDiscardsPriorSession(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		comm.StateMessage{
			AgentID:        1,
			AgentPositions: map[int]state.Position{2: {X: 3, Y: 3}},
			FragileAgents:  map[int]bool{2: true},
			LegalActions:   []state.Action{state.Stop},
		},
	)

	_, seen := c.sessions[1].AgentPosition(2)
	require.True(t, seen)

	dispatchAll(t, c, comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5})

	_, seen = c.sessions[1].AgentPosition(2)
	assert.False(t, seen, "prior observations must not survive a new game")
	assert.False(t, c.sessions[1].FragileAgent(2))
}

func TestGameStartSendFailureDoesNotBurnIteration(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
	)

	f.sendErr = errors.New("peer gone")
	err := c.Dispatch(context.Background(), comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5})
	require.Error(t, err)
	assert.Equal(t, 0, c.episodes[1], "counter increments only after the ack is sent")
}

func TestStateRunsDecisionCycle(t *testing.T) {
	f := &fakeMessenger{}
	c, made := newTestController(t, f, Config{})

	var rec *recordingSession
	c.newSession = func(cfg state.Config) (Session, error) {
		real, err := state.New(cfg)
		if err != nil {
			return nil, err
		}
		rec = &recordingSession{Session: real}
		return rec, nil
	}

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "norther"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		// First turn observes agents 1, 2 and 7.
		comm.StateMessage{
			AgentID:        1,
			WallPositions:  []state.Position{{X: 2, Y: 2}},
			FoodPositions:  []state.Position{{X: 4, Y: 4}},
			AgentPositions: map[int]state.Position{1: {X: 0, Y: 0}, 2: {X: 4, Y: 0}, 7: {X: 0, Y: 4}},
			FragileAgents:  map[int]bool{2: true},
			ExecutedAction: state.Stop,
			LegalActions:   []state.Action{state.North, state.Stop},
		},
	)
	require.Len(t, *made, 1)
	assert.Equal(t, comm.ActionMessage{AgentID: 1, Action: state.North}, lastSent(t, f))
	assert.ElementsMatch(t, []int{1, 2, 7}, rec.predicted)
	assert.Equal(t, state.North, c.LastAction())

	// Second turn omits 7 from the payload; prediction still covers it.
	rec.predicted = nil
	dispatchAll(t, c, comm.StateMessage{
		AgentID:        1,
		AgentPositions: map[int]state.Position{1: {X: 0, Y: 1}, 2: {X: 4, Y: 1}},
		LegalActions:   []state.Action{state.North, state.Stop},
	})
	assert.ElementsMatch(t, []int{1, 2, 7}, rec.predicted)
}

func TestStateBeforeGameStartFailsWithoutCorruption(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.RegisterMessage{AgentID: 2, Team: "ghost", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.InitMessage{AgentID: 2},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		// Agent 2 never started a game.
		comm.StateMessage{AgentID: 2, LegalActions: []state.Action{state.Stop}},
	)

	reply, ok := lastSent(t, f).(comm.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, CodeLookupFailure, reply.Code)

	// Agent 1's session is untouched and still serviceable.
	dispatchAll(t, c, comm.StateMessage{AgentID: 1, LegalActions: []state.Action{state.Stop}})
	assert.Equal(t, comm.ActionMessage{AgentID: 1, Action: state.Stop}, lastSent(t, f))
}

func TestDecisionFailureFailsSingleRequest(t *testing.T) {
	f := &fakeMessenger{}
	c, made := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
	)
	(*made)[0].chooseErr = errors.New("script exploded")

	dispatchAll(t, c, comm.StateMessage{AgentID: 1, LegalActions: []state.Action{state.Stop}})

	reply, ok := lastSent(t, f).(comm.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, CodeDecisionFailure, reply.Code)
	assert.Equal(t, state.Stop, c.LastAction(), "failed decisions must not update the cached action")
}

func TestBehaviorCountReturnsPreResetValue(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
		comm.StateMessage{AgentID: 1, LegalActions: []state.Action{state.Stop}},
		comm.StateMessage{AgentID: 1, LegalActions: []state.Action{state.Stop}},
		comm.RequestBehaviorCountMessage{AgentID: 1},
	)
	assert.Equal(t, comm.BehaviorCountMessage{Count: 2}, lastSent(t, f))

	dispatchAll(t, c, comm.RequestBehaviorCountMessage{AgentID: 1})
	assert.Equal(t, comm.BehaviorCountMessage{Count: 0}, lastSent(t, f))
}

func TestPolicyRoundTrip(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.PolicyMessage{AgentID: 1, Policy: []byte("weights-v2")},
		comm.RequestPolicyMessage{AgentID: 1},
	)

	assert.Equal(t, comm.PolicyMessage{AgentID: 1, Policy: []byte("weights-v2")}, lastSent(t, f))
}

func TestEndToEndScenario(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	var configs []state.Config
	c.newSession = func(cfg state.Config) (Session, error) {
		configs = append(configs, cfg)
		return state.New(cfg)
	}

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.RegisterMessage{AgentID: 2, Team: "ghost", AgentType: "norther"},
		comm.InitMessage{AgentID: 1},
		comm.InitMessage{AgentID: 2},
		comm.GameStartMessage{AgentID: 1, MapWidth: 10, MapHeight: 10},
	)

	require.Len(t, configs, 1)
	assert.Empty(t, configs[0].AllyIDs)
	assert.Equal(t, []int{2}, configs[0].EnemyIDs)
	assert.True(t, configs[0].Eater)
	assert.Equal(t, 0, configs[0].Iteration)

	dispatchAll(t, c, comm.GameStartMessage{AgentID: 1, MapWidth: 10, MapHeight: 10})
	require.Len(t, configs, 2)
	assert.Equal(t, 1, configs[1].Iteration)
}

func TestTeamsRecomputedAtGameStart(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	var configs []state.Config
	c.newSession = func(cfg state.Config) (Session, error) {
		configs = append(configs, cfg)
		return state.New(cfg)
	}

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "ghost", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		// Registered after agent 1's INIT, still visible to its game start.
		comm.RegisterMessage{AgentID: 2, Team: "ghost", AgentType: "stopper"},
		comm.RegisterMessage{AgentID: 3, Team: "pacman", AgentType: "stopper"},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
	)

	require.Len(t, configs, 1)
	assert.Equal(t, []int{2}, configs[0].AllyIDs)
	assert.Equal(t, []int{3}, configs[0].EnemyIDs)
	assert.False(t, configs[0].Eater, "ghost is not the attacker team by default")
}

func TestAttackerTeamConfigurable(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{AttackerTeam: "ghost"})

	var configs []state.Config
	c.newSession = func(cfg state.Config) (Session, error) {
		configs = append(configs, cfg)
		return state.New(cfg)
	}

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "ghost", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.GameStartMessage{AgentID: 1, MapWidth: 5, MapHeight: 5},
	)

	require.Len(t, configs, 1)
	assert.True(t, configs[0].Eater)
}

func TestUnknownKindDroppedWithoutReply(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c, comm.UnknownMessage{WireKind: "teleport"})
	assert.Empty(t, f.sent, "unrecognized kinds must not produce a reply")
}

func TestReplyKindDroppedWithoutReply(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	dispatchAll(t, c, comm.AckMessage{}, comm.ActionMessage{AgentID: 1, Action: state.Stop})
	assert.Empty(t, f.sent)
}

// fakeStore is an in-memory PolicyStore.
type fakeStore struct {
	policies map[int][]byte
	saveErr  error
	loadErr  error
}

func (s *fakeStore) SavePolicy(_ context.Context, agentID int, policy []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.policies == nil {
		s.policies = make(map[int][]byte)
	}
	s.policies[agentID] = append([]byte(nil), policy...)
	return nil
}

func (s *fakeStore) LoadPolicy(_ context.Context, agentID int) ([]byte, bool, error) {
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	policy, ok := s.policies[agentID]
	return policy, ok, nil
}

func TestPolicyWriteThroughAndSeeding(t *testing.T) {
	store := &fakeStore{}
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{Store: store})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.PolicyMessage{AgentID: 1, Policy: []byte("learned")},
	)
	assert.Equal(t, []byte("learned"), store.policies[1])

	// A fresh instance starts from the stored blob.
	dispatchAll(t, c,
		comm.InitMessage{AgentID: 1},
		comm.RequestPolicyMessage{AgentID: 1},
	)
	assert.Equal(t, comm.PolicyMessage{AgentID: 1, Policy: []byte("learned")}, lastSent(t, f))
}

func TestPolicyStoreFailureStillAcks(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("db down")}
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{Store: store})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
		comm.PolicyMessage{AgentID: 1, Policy: []byte("learned")},
	)

	assert.Equal(t, comm.AckMessage{}, lastSent(t, f))

	// The in-memory instance still holds the blob.
	dispatchAll(t, c, comm.RequestPolicyMessage{AgentID: 1})
	assert.Equal(t, comm.PolicyMessage{AgentID: 1, Policy: []byte("learned")}, lastSent(t, f))
}

func TestRunProcessesUntilChannelFails(t *testing.T) {
	f := &fakeMessenger{incoming: []comm.Message{
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.InitMessage{AgentID: 1},
	}}
	c, _ := newTestController(t, f, Config{})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, f.sent, 2)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := &fakeMessenger{}
	c, _ := newTestController(t, f, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}

func TestCloseReleasesInstances(t *testing.T) {
	f := &fakeMessenger{}
	c, made := newTestController(t, f, Config{})

	dispatchAll(t, c,
		comm.RegisterMessage{AgentID: 1, Team: "pacman", AgentType: "stopper"},
		comm.RegisterMessage{AgentID: 2, Team: "ghost", AgentType: "norther"},
		comm.InitMessage{AgentID: 1},
		comm.InitMessage{AgentID: 2},
	)

	require.NoError(t, c.Close())
	for _, a := range *made {
		assert.True(t, a.closed)
	}
}

func TestProperty_EpisodeCountersSurviveInterleavings(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := &fakeMessenger{}
		registry := agent.NewRegistry()
		if err := registry.Register("stopper", scriptedFactory("stopper", state.Stop, nil)); err != nil {
			t.Fatal(err)
		}
		c, err := New(f, registry, Config{}, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		agentIDs := []int{1, 2, 3}
		starts := make(map[int]int)
		iterations := make(map[int][]int)
		c.newSession = func(cfg state.Config) (Session, error) {
			iterations[cfg.AgentID] = append(iterations[cfg.AgentID], cfg.Iteration)
			return state.New(cfg)
		}

		for _, id := range agentIDs {
			if err := c.Dispatch(context.Background(), comm.RegisterMessage{AgentID: id, Team: "pacman", AgentType: "stopper"}); err != nil {
				t.Fatal(err)
			}
			if err := c.Dispatch(context.Background(), comm.InitMessage{AgentID: id}); err != nil {
				t.Fatal(err)
			}
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(agentIDs).Draw(t, fmt.Sprintf("agent-%d", i))
			if rapid.Bool().Draw(t, fmt.Sprintf("reinit-%d", i)) {
				if err := c.Dispatch(context.Background(), comm.InitMessage{AgentID: id}); err != nil {
					t.Fatal(err)
				}
				continue
			}
			if err := c.Dispatch(context.Background(), comm.GameStartMessage{AgentID: id, MapWidth: 4, MapHeight: 4}); err != nil {
				t.Fatal(err)
			}
			starts[id]++
		}

		for _, id := range agentIDs {
			want := make([]int, starts[id])
			for i := range want {
				want[i] = i
			}
			got := iterations[id]
			if len(got) != len(want) {
				t.Fatalf("agent %d: got %d iterations, want %d", id, len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("agent %d: iteration sequence %v, want %v", id, got, want)
				}
			}
		}
	})
}
