package plugin

import (
	"context"
	"fmt"
)

// HooksFor returns the hooks of the given phase whose groups intersect the
// requested groups, in declaration order. An empty phase selects both
// phases (pre first). With no groups every hook of the phase is returned.
func (d *Descriptor) HooksFor(phase HookPhase, groups ...HookGroup) []HookRule {
	phases := []HookPhase{phase}
	if phase == "" {
		phases = []HookPhase{PreHook, PostHook}
	}

	var out []HookRule
	for _, ph := range phases {
		for _, h := range d.hooks[ph] {
			if len(groups) == 0 || intersects(h.Groups, groups) {
				out = append(out, h)
			}
		}
	}
	return out
}

func intersects(a, b []HookGroup) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// RunHooks invokes the plugin's hooks for the phase and group in
// declaration order, each with the dispatched event. Hooks are
// author-declared infrastructure: a hook routed to an unregistered handler
// fails with ErrMissingHandler rather than being skipped, and the first
// hook error stops the chain.
func RunHooks(ctx context.Context, p Plugin, phase HookPhase, group HookGroup, e *Event) error {
	for _, h := range p.Descriptor().HooksFor(phase, group) {
		fn, ok := p.Handler(h.Method)
		if !ok {
			return fmt.Errorf("%w: %s hook %q", ErrMissingHandler, phase, h.Method)
		}
		if err := fn(ctx, e); err != nil {
			return fmt.Errorf("%s hook %q: %w", phase, h.Method, err)
		}
	}
	return nil
}
