// Package comm defines the typed request/reply messages exchanged with the
// game server and the blocking channel they travel over. Framing is
// newline-delimited JSON envelopes; the router core never sees the wire.
package comm

import (
	"github.com/multibot-games/pacrouter/internal/game/state"
)

// Message is the closed set of channel messages. The sealed marker method
// lets the dispatcher switch over concrete types with compile-time
// exhaustiveness instead of string comparison.
type Message interface {
	// Kind returns the wire name of the message, for logging and framing.
	Kind() string

	isMessage()
}

// RegisterMessage declares an agent's team and decision type.
type RegisterMessage struct {
	AgentID   int    `json:"agent_id"`
	Team      string `json:"team"`
	AgentType string `json:"agent_type"`
}

// InitMessage asks for a fresh decision-logic instance for an agent.
type InitMessage struct {
	AgentID int `json:"agent_id"`
}

// GameStartMessage opens a new episode for an agent.
type GameStartMessage struct {
	AgentID   int `json:"agent_id"`
	MapWidth  int `json:"map_width"`
	MapHeight int `json:"map_height"`
}

// StateMessage carries one turn's full world snapshot for an agent and
// requests its next action.
type StateMessage struct {
	AgentID        int                    `json:"agent_id"`
	WallPositions  []state.Position       `json:"wall_positions"`
	FoodPositions  []state.Position       `json:"food_positions"`
	AgentPositions map[int]state.Position `json:"agent_positions"`
	FragileAgents  map[int]bool           `json:"fragile_agents"`
	ExecutedAction state.Action           `json:"executed_action"`
	Reward         float64                `json:"reward"`
	LegalActions   []state.Action         `json:"legal_actions"`
	TestMode       bool                   `json:"test_mode"`
}

// RequestBehaviorCountMessage reads and drains an agent's behavior counter.
type RequestBehaviorCountMessage struct {
	AgentID int `json:"agent_id"`
}

// RequestPolicyMessage reads an agent's current policy blob.
type RequestPolicyMessage struct {
	AgentID int `json:"agent_id"`
}

// PolicyMessage overwrites an agent's policy blob.
type PolicyMessage struct {
	AgentID int    `json:"agent_id"`
	Policy  []byte `json:"policy"`
}

// AckMessage is the empty acknowledgment reply.
type AckMessage struct{}

// ActionMessage is the reply to a StateMessage.
type ActionMessage struct {
	AgentID int          `json:"agent_id"`
	Action  state.Action `json:"action"`
}

// BehaviorCountMessage is the reply to a RequestBehaviorCountMessage.
type BehaviorCountMessage struct {
	Count int `json:"count"`
}

// ErrorMessage reports a failed request. It is the reply sent when a
// handler rejects a protocol violation, so the peer is never left hanging
// on a malformed request.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnknownMessage is produced by the decoder for a kind outside the dispatch
// table. The dispatcher logs and drops it without replying.
type UnknownMessage struct {
	WireKind string `json:"-"`
}

// Wire kind names.
const (
	KindRegister             = "register"
	KindInit                 = "init"
	KindGameStart            = "game_start"
	KindState                = "state"
	KindRequestBehaviorCount = "request_behavior_count"
	KindRequestPolicy        = "request_policy"
	KindPolicy               = "policy"
	KindAck                  = "ack"
	KindAction               = "action"
	KindBehaviorCount        = "behavior_count"
	KindError                = "error"
)

// Kind implementations.

func (RegisterMessage) Kind() string             { return KindRegister }
func (InitMessage) Kind() string                 { return KindInit }
func (GameStartMessage) Kind() string            { return KindGameStart }
func (StateMessage) Kind() string                { return KindState }
func (RequestBehaviorCountMessage) Kind() string { return KindRequestBehaviorCount }
func (RequestPolicyMessage) Kind() string        { return KindRequestPolicy }
func (PolicyMessage) Kind() string               { return KindPolicy }
func (AckMessage) Kind() string                  { return KindAck }
func (ActionMessage) Kind() string               { return KindAction }
func (BehaviorCountMessage) Kind() string        { return KindBehaviorCount }
func (ErrorMessage) Kind() string                { return KindError }
func (m UnknownMessage) Kind() string            { return m.WireKind }

// Sealed markers.

func (RegisterMessage) isMessage()             {}
func (InitMessage) isMessage()                 {}
func (GameStartMessage) isMessage()            {}
func (StateMessage) isMessage()                {}
func (RequestBehaviorCountMessage) isMessage() {}
func (RequestPolicyMessage) isMessage()        {}
func (PolicyMessage) isMessage()               {}
func (AckMessage) isMessage()                  {}
func (ActionMessage) isMessage()               {}
func (BehaviorCountMessage) isMessage()        {}
func (ErrorMessage) isMessage()                {}
func (UnknownMessage) isMessage()              {}
