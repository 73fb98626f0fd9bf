// Package hook guards process-wide interception sites. Installation is an
// explicit step with an observable result: a second installer gets a
// ConflictError naming the current owner instead of a silent override.
package hook

import (
	"fmt"
	"sync"

	"faulttrace/internal/amx"
)

// ConflictError reports that a site is already owned.
type ConflictError struct {
	Owner string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("hook: exec entry already intercepted by %q", e.Owner)
}

// ExecPoint is the interception site for a machine's run entry.
type ExecPoint struct {
	mu    sync.RWMutex
	owner string
	fn    amx.ExecHook
}

// NewExecPoint returns an empty interception site.
func NewExecPoint() *ExecPoint {
	return &ExecPoint{}
}

// Install claims the site for owner. Fails if another owner holds it.
func (p *ExecPoint) Install(owner string, fn amx.ExecHook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn != nil {
		return &ConflictError{Owner: p.owner}
	}
	p.owner = owner
	p.fn = fn
	return nil
}

// Remove releases the site if owner holds it.
func (p *ExecPoint) Remove(owner string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn == nil || p.owner != owner {
		return false
	}
	p.owner = ""
	p.fn = nil
	return true
}

// Installed reports whether the site is claimed, and by whom.
func (p *ExecPoint) Installed() (owner string, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner, p.fn != nil
}

// Dispatch routes an Exec through the installed interceptor, or straight to
// next when the site is empty. Wire this as the machine's exec hook.
func (p *ExecPoint) Dispatch(m *amx.Machine, index int, next amx.ExecFunc) (amx.Cell, error) {
	p.mu.RLock()
	fn := p.fn
	p.mu.RUnlock()
	if fn == nil {
		return next(m, index)
	}
	return fn(m, index, next)
}
