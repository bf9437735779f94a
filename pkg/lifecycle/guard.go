// Package lifecycle tracks whether an instance has been destroyed.
//
// Components embed a Guard and check it at the top of every public method.
// Once destroyed, each call logs a warning naming the module, the type and
// the method, and the component returns its zero result instead of doing
// any work. Methods stay callable, so stored method values never panic.
package lifecycle

import (
	"sync/atomic"

	"github.com/arthur-debert/kvsync/pkg/logging"
)

// ModuleName identifies this module in destroyed-instance diagnostics.
const ModuleName = "kvsync"

// Guard is a one-way alive/destroyed flag. The zero value is not usable;
// create guards with NewGuard.
type Guard struct {
	label     string
	destroyed atomic.Bool
}

// NewGuard returns a live guard for a component of type label.
func NewGuard(label string) *Guard {
	return &Guard{label: label}
}

// Alive reports whether the guarded instance may run method. When the
// instance is destroyed it logs a warning and returns false.
func (g *Guard) Alive(method string) bool {
	if !g.destroyed.Load() {
		return true
	}
	log := logging.GetLogger("lifecycle")
	log.Warn().
		Str("module", ModuleName).
		Str("type", g.label).
		Str("method", method).
		Msgf("%s/%s: Calling %s() on destroyed instance.", ModuleName, g.label, method)
	return false
}

// Destroy marks the guard destroyed. It returns true only for the call
// that performed the transition; later calls warn like any other method.
func (g *Guard) Destroy() bool {
	if g.destroyed.CompareAndSwap(false, true) {
		return true
	}
	g.Alive("Destroy")
	return false
}

// Destroyed reports the flag without logging.
func (g *Guard) Destroyed() bool {
	return g.destroyed.Load()
}

// Label returns the type label used in diagnostics.
func (g *Guard) Label() string {
	return g.label
}
