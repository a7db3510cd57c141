package rustle

import (
	"strings"
	"testing"
)

func TestHookRegistry_Order(t *testing.T) {
	r := NewHookRegistry()
	var order []string
	r.Register(HookBeforeTranslate, func(*HookEvent) { order = append(order, "first") })
	r.Register(HookBeforeTranslate, func(*HookEvent) { order = append(order, "second") })

	r.Emit(&HookEvent{Kind: HookBeforeTranslate})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handlers ran out of order: %v", order)
	}
}

func TestHookRegistry_KindsIsolated(t *testing.T) {
	r := NewHookRegistry()
	hits := 0
	r.Register(HookCacheHit, func(*HookEvent) { hits++ })

	r.Emit(&HookEvent{Kind: HookCacheMiss})
	if hits != 0 {
		t.Error("cache-miss event should not reach cache-hit handlers")
	}
	r.Emit(&HookEvent{Kind: HookCacheHit})
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestHookRegistry_MutatesEvent(t *testing.T) {
	r := NewHookRegistry()
	r.Register(HookBeforeTranslate, func(ev *HookEvent) {
		ev.Text = strings.ToUpper(ev.Text)
	})

	ev := &HookEvent{Kind: HookBeforeTranslate, Text: "hello"}
	r.Emit(ev)
	if ev.Text != "HELLO" {
		t.Errorf("Text = %q, want mutation to stick", ev.Text)
	}
}

func TestHookRegistry_PanicCaught(t *testing.T) {
	r := NewHookRegistry()
	var reported error
	r.Register(HookError, func(ev *HookEvent) { reported = ev.Err })
	r.Register(HookBeforeTranslate, func(*HookEvent) { panic("boom") })
	ran := false
	r.Register(HookBeforeTranslate, func(*HookEvent) { ran = true })

	r.Emit(&HookEvent{Kind: HookBeforeTranslate, Text: "x"})

	if reported == nil || !strings.Contains(reported.Error(), "boom") {
		t.Errorf("panic should surface through HookError, got %v", reported)
	}
	if !ran {
		t.Error("a panicking handler must not stop later handlers")
	}
}

func TestHookRegistry_ErrorHandlerPanicSwallowed(t *testing.T) {
	r := NewHookRegistry()
	r.Register(HookError, func(*HookEvent) { panic("recursive") })

	// Must not recurse or crash.
	r.Emit(&HookEvent{Kind: HookError})
}
