package sim

// HookPos names a point in a component's logic where a Hook may be invoked.
type HookPos struct {
	Name string
}

// HookPosBeforeEvent fires immediately before the engine dispatches an event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires immediately after a dispatched event returns.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// HookPosPortMsgSend fires when a packet is accepted by SendTiming.
var HookPosPortMsgSend = &HookPos{Name: "Port Msg Send"}

// HookPosPortMsgRecv fires when a packet is delivered via RecvTiming.
var HookPosPortMsgRecv = &HookPos{Name: "Port Msg Recv"}

// HookPosPortRetry fires when a previously blocked port is retried.
var HookPosPortRetry = &HookPos{Name: "Port Retry"}

// HookCtx carries everything a Hook needs about the site it fired at.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is implemented by anything that accepts observers (ports,
// buffers, the engine), so a tracer can tap into simulation events without
// the core depending on it. The stats and monitor packages register no
// hooks; they read cache.Stats through stats.Registry.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// A Hook is a small piece of logic invoked at a HookPos.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase is embedded by components and buffers to provide Hookable.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook registers hook to be invoked on future InvokeHook calls.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// NumHooks reports how many hooks are currently registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook calls every registered hook with ctx, in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
