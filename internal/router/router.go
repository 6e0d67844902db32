// Package router implements the dispatch-and-session-tracking core: one
// Controller per game-server connection, owning the registration records,
// live decision-logic instances, per-agent sessions, and episode counters,
// and serving the strict request/reply protocol over a blocking channel.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/multibot-games/pacrouter/internal/comm"
	"github.com/multibot-games/pacrouter/internal/game/agent"
	"github.com/multibot-games/pacrouter/internal/game/state"
)

// DefaultAttackerTeam is the team label holding the eater role when the
// configuration does not override it.
const DefaultAttackerTeam = "pacman"

// Session is the per-agent, per-episode belief snapshot the dispatcher
// drives. *state.GameState satisfies it; tests substitute recorders.
type Session interface {
	agent.GameView

	ObserveAgent(id int, pos state.Position)
	ObserveFragileAgent(id int, fragile bool)
	PredictAgent(id int, action state.Action)
	SetWalls(positions []state.Position)
	SetFoodPositions(positions []state.Position)
}

// PolicyStore persists policy blobs across runs. Implementations report a
// missing row with found=false, not an error.
type PolicyStore interface {
	SavePolicy(ctx context.Context, agentID int, policy []byte) error
	LoadPolicy(ctx context.Context, agentID int) (policy []byte, found bool, err error)
}

// Config parameterises a Controller.
type Config struct {
	// AttackerTeam is the team label holding the eater role. Empty selects
	// DefaultAttackerTeam.
	AttackerTeam string
	// Store, when non-nil, receives policy writes and seeds fresh instances.
	Store PolicyStore
}

// registration is one agent's declared team and decision type.
type registration struct {
	team      string
	agentType string
}

// Controller owns all per-agent routing state. It is driven by a single
// thread of control: the run loop's receive is the sole suspension point
// and exactly one request is in flight at a time, so no locking is needed.
//
// Invariant: episode counters are monotonic per agent id and survive
// re-registration and re-initialization.
type Controller struct {
	logger       *zap.Logger
	messenger    comm.Messenger
	registry     *agent.Registry
	attackerTeam string
	store        PolicyStore

	records   map[int]registration
	instances map[int]agent.Agent
	sessions  map[int]Session
	episodes  map[int]int

	lastAction state.Action

	// newSession is the session constructor, swappable in tests.
	newSession func(cfg state.Config) (Session, error)
}

// New creates a Controller serving messenger.
//
// Precondition: messenger and registry must not be nil.
// Postcondition: Returns a Controller with no registrations, instances, or
// sessions, and the last action initialised to Stop.
func New(messenger comm.Messenger, registry *agent.Registry, cfg Config, logger *zap.Logger) (*Controller, error) {
	if messenger == nil {
		return nil, ErrNilMessenger
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if cfg.AttackerTeam == "" {
		cfg.AttackerTeam = DefaultAttackerTeam
	}
	return &Controller{
		logger:       logger,
		messenger:    messenger,
		registry:     registry,
		attackerTeam: cfg.AttackerTeam,
		store:        cfg.Store,
		records:      make(map[int]registration),
		instances:    make(map[int]agent.Agent),
		sessions:     make(map[int]Session),
		episodes:     make(map[int]int),
		lastAction:   state.Stop,
		newSession: func(cfg state.Config) (Session, error) {
			return state.New(cfg)
		},
	}, nil
}

// Run pulls one message at a time from the channel and dispatches it until
// ctx is cancelled or the channel fails. Request-level failures are
// answered with an error reply and do not terminate the loop.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := c.messenger.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving message: %w", err)
		}

		if err := c.Dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

// Dispatch classifies msg and runs its handler. Each handled request gets
// exactly one reply; a request-level failure is converted into an error
// reply. The returned error is transport-fatal only.
func (c *Controller) Dispatch(ctx context.Context, msg comm.Message) error {
	err := c.handle(ctx, msg)
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		c.logger.Warn("request failed",
			zap.String("kind", msg.Kind()),
			zap.String("code", reqErr.Code),
			zap.Error(reqErr.Err))
		return c.send(comm.ErrorMessage{Code: reqErr.Code, Message: reqErr.Error()})
	}
	return err
}

// handle runs the matching handler. The switch is closed over the sealed
// message set: reply kinds arriving as requests are dropped like
// unrecognised kinds, since this side never issues requests of its own.
func (c *Controller) handle(ctx context.Context, msg comm.Message) error {
	switch m := msg.(type) {
	case comm.RegisterMessage:
		return c.handleRegister(m)
	case comm.InitMessage:
		return c.handleInit(ctx, m)
	case comm.GameStartMessage:
		return c.handleGameStart(m)
	case comm.StateMessage:
		return c.handleState(ctx, m)
	case comm.RequestBehaviorCountMessage:
		return c.handleRequestBehaviorCount(m)
	case comm.RequestPolicyMessage:
		return c.handleRequestPolicy(m)
	case comm.PolicyMessage:
		return c.handleSetPolicy(ctx, m)
	case comm.AckMessage, comm.ActionMessage, comm.BehaviorCountMessage, comm.ErrorMessage:
		c.logger.Warn("reply kind received as request, dropping", zap.String("kind", msg.Kind()))
		return nil
	case comm.UnknownMessage:
		c.logger.Warn("unrecognized message kind, dropping", zap.String("kind", m.WireKind))
		return nil
	default:
		c.logger.Warn("unhandled message type, dropping", zap.String("kind", msg.Kind()))
		return nil
	}
}

// handleRegister stores or overwrites the agent's registration record.
func (c *Controller) handleRegister(m comm.RegisterMessage) error {
	c.records[m.AgentID] = registration{team: m.Team, agentType: m.AgentType}
	c.logger.Info("agent registered",
		zap.Int("agent_id", m.AgentID),
		zap.String("team", m.Team),
		zap.String("agent_type", m.AgentType))
	return c.send(comm.AckMessage{})
}

// handleInit constructs a fresh decision-logic instance for the agent,
// releasing any prior one. The episode counter is created at zero the first
// time and left untouched on repeats.
func (c *Controller) handleInit(ctx context.Context, m comm.InitMessage) error {
	record, ok := c.records[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "registration record")
	}
	factory, ok := c.registry.Lookup(record.agentType)
	if !ok {
		return &RequestError{
			Code: CodeUnknownType,
			Err:  fmt.Errorf("agent %d declares unknown type %q", m.AgentID, record.agentType),
		}
	}

	instance, err := factory(agent.InstanceConfig{
		AgentID:  m.AgentID,
		AllyIDs:  c.alliesOf(m.AgentID),
		EnemyIDs: c.enemiesOf(m.AgentID),
	})
	if err != nil {
		return &RequestError{
			Code: CodeUnknownType,
			Err:  fmt.Errorf("constructing %q instance for agent %d: %w", record.agentType, m.AgentID, err),
		}
	}

	if old, ok := c.instances[m.AgentID]; ok {
		if closer, ok := old.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Warn("closing replaced instance", zap.Int("agent_id", m.AgentID), zap.Error(err))
			}
		}
	}
	c.instances[m.AgentID] = instance
	if _, ok := c.episodes[m.AgentID]; !ok {
		c.episodes[m.AgentID] = 0
	}

	c.seedPolicy(ctx, m.AgentID, instance)

	c.logger.Info("agent initialized",
		zap.Int("agent_id", m.AgentID),
		zap.String("agent_type", record.agentType))
	return c.send(comm.AckMessage{})
}

// seedPolicy loads the stored policy blob into a fresh instance. Storage
// trouble degrades to a warning; the instance starts unseeded.
func (c *Controller) seedPolicy(ctx context.Context, agentID int, instance agent.Agent) {
	if c.store == nil {
		return
	}
	blob, found, err := c.store.LoadPolicy(ctx, agentID)
	if err != nil {
		c.logger.Warn("loading stored policy", zap.Int("agent_id", agentID), zap.Error(err))
		return
	}
	if !found {
		return
	}
	if err := instance.SetPolicy(blob); err != nil {
		c.logger.Warn("seeding stored policy", zap.Int("agent_id", agentID), zap.Error(err))
	}
}

// handleGameStart opens a new episode: any prior session is discarded and a
// fresh one is seeded with the current episode counter. The counter is
// incremented only after the Ack is on the wire, so a failed reply does not
// burn an iteration.
func (c *Controller) handleGameStart(m comm.GameStartMessage) error {
	record, ok := c.records[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "registration record")
	}
	if _, ok := c.instances[m.AgentID]; !ok {
		return lookupFailure(m.AgentID, "decision-logic instance")
	}

	session, err := c.newSession(state.Config{
		Width:     m.MapWidth,
		Height:    m.MapHeight,
		AgentID:   m.AgentID,
		AllyIDs:   c.alliesOf(m.AgentID),
		EnemyIDs:  c.enemiesOf(m.AgentID),
		Eater:     record.team == c.attackerTeam,
		Iteration: c.episodes[m.AgentID],
	})
	if err != nil {
		return &RequestError{
			Code: CodeLookupFailure,
			Err:  fmt.Errorf("starting game for agent %d: %w", m.AgentID, err),
		}
	}
	c.sessions[m.AgentID] = session

	c.logger.Info("game started",
		zap.Int("agent_id", m.AgentID),
		zap.Int("iteration", c.episodes[m.AgentID]),
		zap.Bool("eater", record.team == c.attackerTeam))

	if err := c.send(comm.AckMessage{}); err != nil {
		return err
	}
	c.episodes[m.AgentID]++
	return nil
}

// handleState runs the decision cycle: refresh the layout snapshots,
// fold in this turn's observations, ask the instance for an action, then
// advance the belief about every known agent before the next turn arrives.
func (c *Controller) handleState(ctx context.Context, m comm.StateMessage) error {
	session, ok := c.sessions[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "session")
	}
	instance, ok := c.instances[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "decision-logic instance")
	}

	session.SetWalls(m.WallPositions)
	session.SetFoodPositions(m.FoodPositions)
	for id, pos := range m.AgentPositions {
		session.ObserveAgent(id, pos)
	}
	for id, fragile := range m.FragileAgents {
		session.ObserveFragileAgent(id, fragile)
	}

	action, err := instance.ChooseAction(ctx, session, m.ExecutedAction, m.Reward, m.LegalActions, m.TestMode)
	if err != nil {
		return &RequestError{
			Code: CodeDecisionFailure,
			Err:  fmt.Errorf("agent %d decision: %w", m.AgentID, err),
		}
	}

	for _, id := range session.KnownIDs() {
		session.PredictAgent(id, action)
	}
	c.lastAction = action

	return c.send(comm.ActionMessage{AgentID: m.AgentID, Action: action})
}

// handleRequestBehaviorCount reads the counter and drains it to zero.
func (c *Controller) handleRequestBehaviorCount(m comm.RequestBehaviorCountMessage) error {
	instance, ok := c.instances[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "decision-logic instance")
	}
	count := instance.BehaviorCount()
	instance.ResetBehaviorCount()
	return c.send(comm.BehaviorCountMessage{Count: count})
}

// handleRequestPolicy reads the instance's current policy blob.
func (c *Controller) handleRequestPolicy(m comm.RequestPolicyMessage) error {
	instance, ok := c.instances[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "decision-logic instance")
	}
	policy, err := instance.Policy()
	if err != nil {
		return &RequestError{
			Code: CodePolicyFailure,
			Err:  fmt.Errorf("reading agent %d policy: %w", m.AgentID, err),
		}
	}
	return c.send(comm.PolicyMessage{AgentID: m.AgentID, Policy: policy})
}

// handleSetPolicy overwrites the instance's policy blob. The in-memory
// instance is authoritative; the store is a checkpoint, so a failed
// write-through degrades to a logged error.
func (c *Controller) handleSetPolicy(ctx context.Context, m comm.PolicyMessage) error {
	instance, ok := c.instances[m.AgentID]
	if !ok {
		return lookupFailure(m.AgentID, "decision-logic instance")
	}
	if err := instance.SetPolicy(m.Policy); err != nil {
		return &RequestError{
			Code: CodePolicyFailure,
			Err:  fmt.Errorf("setting agent %d policy: %w", m.AgentID, err),
		}
	}
	if c.store != nil {
		if err := c.store.SavePolicy(ctx, m.AgentID, m.Policy); err != nil {
			c.logger.Error("persisting policy", zap.Int("agent_id", m.AgentID), zap.Error(err))
		}
	}
	return c.send(comm.AckMessage{})
}

// alliesOf returns every registered agent sharing id's team, excluding id.
// Recomputed from current registrations at every call.
func (c *Controller) alliesOf(id int) []int {
	record, ok := c.records[id]
	if !ok {
		return nil
	}
	var allies []int
	for otherID, other := range c.records {
		if otherID != id && other.team == record.team {
			allies = append(allies, otherID)
		}
	}
	sort.Ints(allies)
	return allies
}

// enemiesOf returns every registered agent on a different team than id.
// Recomputed from current registrations at every call.
func (c *Controller) enemiesOf(id int) []int {
	record, ok := c.records[id]
	if !ok {
		return nil
	}
	var enemies []int
	for otherID, other := range c.records {
		if other.team != record.team {
			enemies = append(enemies, otherID)
		}
	}
	sort.Ints(enemies)
	return enemies
}

// LastAction returns the most recently chosen action, Stop before any
// decision has run. Observability only.
func (c *Controller) LastAction() state.Action {
	return c.lastAction
}

// Close releases every live instance that holds external resources.
func (c *Controller) Close() error {
	var firstErr error
	for id, instance := range c.instances {
		if closer, ok := instance.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("closing instance for agent %d: %w", id, err)
			}
		}
	}
	return firstErr
}

func (c *Controller) send(msg comm.Message) error {
	if err := c.messenger.Send(msg); err != nil {
		return fmt.Errorf("sending %s reply: %w", msg.Kind(), err)
	}
	return nil
}
