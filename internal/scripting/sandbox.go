// Package scripting provides a sandboxed GopherLua execution environment for
// decision scripts. It has no dependency on game domain packages; callers
// push whatever view of the world their scripts need.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// decision call when no configuration override is supplied.
const DefaultInstructionLimit = 100_000

// countingContext is a context.Context that cancels itself after Done() has
// been called limit times. GopherLua's main loop calls Done() once per
// opcode, making this an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

// Done returns the underlying cancellation channel. Each call decrements the
// remaining counter; when it reaches zero the cancel function fires,
// terminating the Lua VM on the next opcode boundary.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// NewSandboxedState creates a GopherLua LState with only the safe standard
// libraries loaded (base, table, string, math) and the escape hatches
// removed: dofile, loadfile, load, collectgarbage, require.
//
// Postcondition: Returns a non-nil LState. The caller owns it and must call
// L.Close() when done.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Strip dangerous globals left by OpenBase.
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	return L
}

// LimitInstructions arms L with a fresh instruction budget. It must be
// called before every script execution: the previous budget is spent, not
// refilled, once the VM has run.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: L cancels after at most limit opcodes. The returned cancel
// releases the budget's resources and must be called when the execution ends.
func LimitInstructions(L *lua.LState, limit int) context.CancelFunc {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	L.SetContext(&countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	})
	return cancel
}
