package agent

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/multibot-games/pacrouter/internal/game/state"
	"github.com/multibot-games/pacrouter/internal/scripting"
)

// LuaAgent delegates decisions to a sandboxed Lua script. The script must
// define a global choose_action(view, last_action, reward, legal, test_mode)
// returning one of the legal action names. It may optionally define
// get_policy() and set_policy(blob) to participate in policy transfer.
type LuaAgent struct {
	behaviorCounter
	L      *lua.LState
	limit  int
	policy []byte
}

// ScriptFactory returns a Factory producing LuaAgents bound to scriptPath.
// Each instance owns its own interpreter, loaded once at construction under
// the same instruction budget the per-turn calls get.
func ScriptFactory(scriptPath string, instructionLimit int) Factory {
	return func(cfg InstanceConfig) (Agent, error) {
		L := scripting.NewSandboxedState()
		cancel := scripting.LimitInstructions(L, instructionLimit)
		err := L.DoFile(scriptPath)
		cancel()
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("loading decision script %s: %w", scriptPath, err)
		}
		if L.GetGlobal("choose_action").Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("decision script %s does not define choose_action", scriptPath)
		}
		return &LuaAgent{L: L, limit: instructionLimit}, nil
	}
}

// ChooseAction runs choose_action in the sandbox under a fresh instruction
// budget and validates the returned action name.
func (a *LuaAgent) ChooseAction(_ context.Context, view GameView, lastAction state.Action, reward float64, legal []state.Action, testMode bool) (state.Action, error) {
	a.noteBehavior()

	legalTable := a.L.NewTable()
	for _, action := range legal {
		legalTable.Append(lua.LString(action))
	}

	cancel := scripting.LimitInstructions(a.L, a.limit)
	defer cancel()
	err := a.L.CallByParam(lua.P{
		Fn:      a.L.GetGlobal("choose_action"),
		NRet:    1,
		Protect: true,
	}, a.viewTable(view), lua.LString(lastAction), lua.LNumber(reward), legalTable, lua.LBool(testMode))
	if err != nil {
		return state.Stop, fmt.Errorf("choose_action failed: %w", err)
	}

	ret := a.L.Get(-1)
	a.L.Pop(1)
	chosen := state.Action(lua.LVAsString(ret))
	if !chosen.Valid() {
		return state.Stop, fmt.Errorf("choose_action returned invalid action %q", chosen)
	}
	if len(legal) > 0 && !containsAction(legal, chosen) {
		return state.Stop, fmt.Errorf("choose_action returned illegal action %q", chosen)
	}
	return chosen, nil
}

// Policy returns the script's policy. When the script defines get_policy the
// returned string wins; otherwise the last stored blob is echoed back.
func (a *LuaAgent) Policy() ([]byte, error) {
	fn := a.L.GetGlobal("get_policy")
	if fn.Type() != lua.LTFunction {
		return a.policy, nil
	}
	cancel := scripting.LimitInstructions(a.L, a.limit)
	defer cancel()
	if err := a.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return nil, fmt.Errorf("get_policy failed: %w", err)
	}
	ret := a.L.Get(-1)
	a.L.Pop(1)
	return []byte(lua.LVAsString(ret)), nil
}

// SetPolicy stores the blob and forwards it to the script's set_policy hook
// when one exists.
func (a *LuaAgent) SetPolicy(policy []byte) error {
	a.policy = policy
	fn := a.L.GetGlobal("set_policy")
	if fn.Type() != lua.LTFunction {
		return nil
	}
	cancel := scripting.LimitInstructions(a.L, a.limit)
	defer cancel()
	if err := a.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(policy)); err != nil {
		return fmt.Errorf("set_policy failed: %w", err)
	}
	return nil
}

// Close releases the interpreter.
func (a *LuaAgent) Close() error {
	a.L.Close()
	return nil
}

// viewTable projects the world view into a Lua table:
// width, height, agent_id, iteration, eater, walls, food, agents (id keyed,
// each with x, y, fragile), allies, enemies.
func (a *LuaAgent) viewTable(view GameView) *lua.LTable {
	t := a.L.NewTable()
	width, height := view.MapSize()
	a.L.SetField(t, "width", lua.LNumber(width))
	a.L.SetField(t, "height", lua.LNumber(height))
	a.L.SetField(t, "agent_id", lua.LNumber(view.AgentID()))
	a.L.SetField(t, "iteration", lua.LNumber(view.Iteration()))
	a.L.SetField(t, "eater", lua.LBool(view.Eater()))

	a.L.SetField(t, "walls", a.positionsTable(view.Walls()))
	a.L.SetField(t, "food", a.positionsTable(view.FoodPositions()))

	agents := a.L.NewTable()
	for _, id := range view.KnownIDs() {
		pos, ok := view.AgentPosition(id)
		if !ok {
			continue
		}
		entry := a.L.NewTable()
		a.L.SetField(entry, "x", lua.LNumber(pos.X))
		a.L.SetField(entry, "y", lua.LNumber(pos.Y))
		a.L.SetField(entry, "fragile", lua.LBool(view.FragileAgent(id)))
		agents.RawSetInt(id, entry)
	}
	a.L.SetField(t, "agents", agents)

	a.L.SetField(t, "allies", a.idsTable(view.AllyIDs()))
	a.L.SetField(t, "enemies", a.idsTable(view.EnemyIDs()))
	return t
}

func (a *LuaAgent) positionsTable(positions []state.Position) *lua.LTable {
	t := a.L.NewTable()
	for _, pos := range positions {
		entry := a.L.NewTable()
		a.L.SetField(entry, "x", lua.LNumber(pos.X))
		a.L.SetField(entry, "y", lua.LNumber(pos.Y))
		t.Append(entry)
	}
	return t
}

func (a *LuaAgent) idsTable(ids []int) *lua.LTable {
	t := a.L.NewTable()
	for _, id := range ids {
		t.Append(lua.LNumber(id))
	}
	return t
}

func containsAction(actions []state.Action, target state.Action) bool {
	for _, action := range actions {
		if action == target {
			return true
		}
	}
	return false
}
