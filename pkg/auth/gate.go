// Package auth implements the authorization gate that wraps every
// mutating handler method: it resolves the calling peer's UID from the
// bus connection, consults a pluggable policy backend with
// (uid, action_name), and rejects or proceeds accordingly. Every
// mutating handler method goes through the same Gate; read-only handler
// methods (listings, info, status and usage queries) do not call it at
// all. The backend returns a three-valued verdict rather than
// a plain allow/deny, so an interactive-confirmation policy can be
// expressed without changing the Gate's contract.
package auth

import (
	"context"
	"fmt"

	"github.com/storagebroker/service/pkg/errs"
	"github.com/storagebroker/service/pkg/metrics"
)

// Verdict is the three-valued result a policy backend returns for one
// (uid, action) pair.
type Verdict string

const (
	Authorized  Verdict = "authorized"
	Denied      Verdict = "denied"
	Interactive Verdict = "interactive"
)

// PolicyBackend is the pluggable authority the Gate consults. A real
// deployment bridges this to the system's polkit-equivalent prompter;
// that prompter is out of scope here, so this package only defines the
// contract and ships a process-local stub suitable for tests and
// headless operation.
type PolicyBackend interface {
	// Check returns the verdict for uid attempting action. Interactive
	// verdicts are expected to have already resolved to a yes/no by the
	// time Check returns — the backend owns any prompting.
	Check(ctx context.Context, uid uint32, action string) (Verdict, error)
}

// SenderResolver extracts the calling peer's UID from whatever
// transport-level identity the bus connection exposes.
type SenderResolver interface {
	CallerUID(ctx context.Context) (uint32, error)
}

// Gate is the single chokepoint every mutating method passes through.
type Gate struct {
	Backend  PolicyBackend
	Resolver SenderResolver
}

// New builds a Gate over the given backend and sender resolver.
func New(backend PolicyBackend, resolver SenderResolver) *Gate {
	return &Gate{Backend: backend, Resolver: resolver}
}

// CallerInfo is handed to the handler body once a call passes the gate.
type CallerInfo struct {
	UID    uint32
	Action string
}

// Authorize resolves the caller's UID, consults the backend for action,
// and returns the caller info on success or a *errs.Error with Kind
// NotAuthorized on denial. Gate failures are terminal: callers must not
// retry within the service. Every call is recorded against
// metrics.HandlerCallsTotal/HandlerCallDuration, since this is the one
// chokepoint every mutating handler method passes through; denials
// additionally bump metrics.AuthDenialsTotal.
func (g *Gate) Authorize(ctx context.Context, domain, action string) (CallerInfo, error) {
	timer := metrics.NewTimer()
	result := "authorized"
	defer func() {
		metrics.HandlerCallsTotal.WithLabelValues(domain, action, result).Inc()
		timer.ObserveDurationVec(metrics.HandlerCallDuration, domain, action)
	}()

	uid, err := g.Resolver.CallerUID(ctx)
	if err != nil {
		result = "error"
		return CallerInfo{}, errs.Wrap(errs.Internal, domain, fmt.Errorf("resolve caller uid: %w", err))
	}

	verdict, err := g.Backend.Check(ctx, uid, action)
	if err != nil {
		result = "error"
		return CallerInfo{}, errs.Wrap(errs.Internal, domain, fmt.Errorf("policy check for %q: %w", action, err))
	}

	switch verdict {
	case Authorized:
		return CallerInfo{UID: uid, Action: action}, nil
	case Interactive:
		// The backend resolves interactive prompts internally before
		// returning; by contract it must not return Interactive as a
		// terminal verdict. Treat it as denial defensively.
		result = "denied"
		metrics.AuthDenialsTotal.WithLabelValues(action).Inc()
		return CallerInfo{}, errs.New(errs.NotAuthorized, domain, "action %q requires interactive authorization that was not resolved", action)
	default:
		result = "denied"
		metrics.AuthDenialsTotal.WithLabelValues(action).Inc()
		return CallerInfo{}, errs.New(errs.NotAuthorized, domain, "action %q denied for uid %d", action, uid)
	}
}
