// Package state provides the per-agent, per-episode belief snapshot: map
// layout, last-known positions and fragility of every observed agent, and a
// one-step forward simulation used to advance the belief between turns.
package state

import (
	"fmt"
	"sort"
)

// Action is a movement direction chosen by decision logic.
type Action string

// Movement actions.
const (
	North Action = "North"
	South Action = "South"
	East  Action = "East"
	West  Action = "West"
	Stop  Action = "Stop"
)

// Actions lists every movement action.
var Actions = []Action{North, South, East, West, Stop}

// Valid reports whether a is a recognised movement action.
func (a Action) Valid() bool {
	switch a {
	case North, South, East, West, Stop:
		return true
	}
	return false
}

// Delta returns the (dx, dy) displacement of the action. North increases y.
func (a Action) Delta() (int, int) {
	switch a {
	case North:
		return 0, 1
	case South:
		return 0, -1
	case East:
		return 1, 0
	case West:
		return -1, 0
	}
	return 0, 0
}

// Position is a cell coordinate on the map.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Config parameterises a new GameState.
type Config struct {
	// Width and Height are the map dimensions in cells.
	Width  int
	Height int
	// AgentID is the acting agent this snapshot belongs to.
	AgentID int
	// AllyIDs and EnemyIDs partition the other registered agents.
	AllyIDs  []int
	EnemyIDs []int
	// Eater is true when the acting agent's team holds the attacker role.
	Eater bool
	// Iteration is the episode counter value this game started with.
	Iteration int
}

// GameState is one agent's mutable projection of the world.
//
// Invariant: positions and fragility hold the last written value per agent
// id; wall and food snapshots are replaced wholesale, never merged.
// GameState is not safe for concurrent use; the router touches it from a
// single thread of control.
type GameState struct {
	width     int
	height    int
	agentID   int
	allyIDs   []int
	enemyIDs  []int
	eater     bool
	iteration int

	walls     map[Position]bool
	food      []Position
	positions map[int]Position
	fragile   map[int]bool
}

// New creates a GameState from cfg.
//
// Precondition: cfg.Width and cfg.Height must be >= 1.
// Postcondition: Returns a GameState with empty layouts and no observations.
func New(cfg Config) (*GameState, error) {
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("state: map dimensions must be >= 1, got %dx%d", cfg.Width, cfg.Height)
	}
	return &GameState{
		width:     cfg.Width,
		height:    cfg.Height,
		agentID:   cfg.AgentID,
		allyIDs:   append([]int(nil), cfg.AllyIDs...),
		enemyIDs:  append([]int(nil), cfg.EnemyIDs...),
		eater:     cfg.Eater,
		iteration: cfg.Iteration,
		walls:     make(map[Position]bool),
		positions: make(map[int]Position),
		fragile:   make(map[int]bool),
	}, nil
}

// ObserveAgent overwrites the last-known position of id. Last write wins.
func (s *GameState) ObserveAgent(id int, pos Position) {
	s.positions[id] = pos
}

// ObserveFragileAgent overwrites the fragility flag of id. Last write wins.
func (s *GameState) ObserveFragileAgent(id int, fragile bool) {
	s.fragile[id] = fragile
}

// PredictAgent advances the belief about id one step, given the action the
// acting agent chose. The acting agent's own belief moves by the action's
// displacement when the target cell is in bounds and not a wall; other
// agents' beliefs hold their last observation.
func (s *GameState) PredictAgent(id int, action Action) {
	if id != s.agentID {
		return
	}
	pos, ok := s.positions[s.agentID]
	if !ok {
		return
	}
	dx, dy := action.Delta()
	next := Position{X: pos.X + dx, Y: pos.Y + dy}
	if !s.InBounds(next) || s.walls[next] {
		return
	}
	s.positions[s.agentID] = next
}

// SetWalls replaces the wall layout wholesale.
func (s *GameState) SetWalls(positions []Position) {
	s.walls = make(map[Position]bool, len(positions))
	for _, p := range positions {
		s.walls[p] = true
	}
}

// SetFoodPositions replaces the food layout wholesale.
func (s *GameState) SetFoodPositions(positions []Position) {
	s.food = append([]Position(nil), positions...)
}

// AgentPosition returns the last-known position of id.
func (s *GameState) AgentPosition(id int) (Position, bool) {
	pos, ok := s.positions[id]
	return pos, ok
}

// FragileAgent returns the last-known fragility flag of id.
// Unobserved agents are not fragile.
func (s *GameState) FragileAgent(id int) bool {
	return s.fragile[id]
}

// KnownIDs returns every agent id this snapshot knows about: the acting
// agent plus every id observed through positions or fragility flags.
//
// Postcondition: Returns a sorted slice with no duplicates.
func (s *GameState) KnownIDs() []int {
	seen := map[int]bool{s.agentID: true}
	for id := range s.positions {
		seen[id] = true
	}
	for id := range s.fragile {
		seen[id] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// InBounds reports whether p lies on the map.
func (s *GameState) InBounds(p Position) bool {
	return p.X >= 0 && p.X < s.width && p.Y >= 0 && p.Y < s.height
}

// WallAt reports whether p holds a wall in the current snapshot.
func (s *GameState) WallAt(p Position) bool {
	return s.walls[p]
}

// Walls returns a copy of the wall layout.
func (s *GameState) Walls() []Position {
	out := make([]Position, 0, len(s.walls))
	for p := range s.walls {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// FoodPositions returns a copy of the food layout.
func (s *GameState) FoodPositions() []Position {
	return append([]Position(nil), s.food...)
}

// MapSize returns the map dimensions in cells.
func (s *GameState) MapSize() (width, height int) {
	return s.width, s.height
}

// AgentID returns the acting agent's id.
func (s *GameState) AgentID() int { return s.agentID }

// AllyIDs returns a copy of the ally id set fixed at game start.
func (s *GameState) AllyIDs() []int { return append([]int(nil), s.allyIDs...) }

// EnemyIDs returns a copy of the enemy id set fixed at game start.
func (s *GameState) EnemyIDs() []int { return append([]int(nil), s.enemyIDs...) }

// Eater reports whether the acting agent's team holds the attacker role.
func (s *GameState) Eater() bool { return s.eater }

// Iteration returns the episode counter value this game started with.
func (s *GameState) Iteration() int { return s.iteration }
