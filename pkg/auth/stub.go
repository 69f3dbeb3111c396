package auth

import "context"

// StubBackend is a process-local PolicyBackend for tests and headless
// operation: every action in Denied is rejected, every action in
// AlwaysPrompt is treated as interactive (and, absent a real prompter,
// denied), everything else is authorized. This is not a production
// authority — the real policy/credentials prompter is out of scope
// here, to be bridged in by a deployment-specific backend.
type StubBackend struct {
	Denied       map[string]bool
	AlwaysPrompt map[string]bool
}

// NewStubBackend returns a permissive backend suitable for tests.
func NewStubBackend() *StubBackend {
	return &StubBackend{Denied: map[string]bool{}, AlwaysPrompt: map[string]bool{}}
}

func (s *StubBackend) Check(_ context.Context, _ uint32, action string) (Verdict, error) {
	if s.Denied[action] {
		return Denied, nil
	}
	if s.AlwaysPrompt[action] {
		return Interactive, nil
	}
	return Authorized, nil
}

// StaticResolver returns a fixed UID regardless of the call context,
// useful for tests that don't exercise a real bus connection.
type StaticResolver struct{ UID uint32 }

func (r StaticResolver) CallerUID(_ context.Context) (uint32, error) { return r.UID, nil }
