// Package mock provides a configurable test double for [address.Verifier].
//
// Typical usage:
//
//	v := &mock.Verifier{Outcome: address.Matched(verified, address.CodeConfirmed)}
//	// inject v into the system under test …
//	if got := len(v.Calls()); got != 1 {
//	    t.Errorf("expected 1 Verify call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/toolbox/internal/address"
)

// Verifier is a test double for [address.Verifier]. It returns Outcome for
// every call and records the submitted addresses. Safe for concurrent use.
type Verifier struct {
	mu    sync.Mutex
	calls []address.SubmittedAddress

	// Outcome is returned by [Verifier.Verify]. The zero value is an
	// unmatched outcome without a reason.
	Outcome address.Outcome
}

var _ address.Verifier = (*Verifier)(nil)

// Verify records addr and returns v.Outcome.
func (v *Verifier) Verify(_ context.Context, addr address.SubmittedAddress) address.Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, addr)
	return v.Outcome
}

// Calls returns a copy of every address passed to Verify, in order.
func (v *Verifier) Calls() []address.SubmittedAddress {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]address.SubmittedAddress, len(v.calls))
	copy(out, v.calls)
	return out
}
