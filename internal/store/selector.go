package store

import (
	"sync"

	"github.com/LogicUI/zustand-in-depth/internal/core"
)

// Watch subscribes fn to a projection of the state and re-notifies only
// when the projection changes according to eq. Useful for rendering code
// that should not re-render on unrelated updates.
func Watch[T any](c *Container, project func(core.State) T, eq func(a, b T) bool, fn func(T)) func() {
	var mu sync.Mutex
	var last T
	var seen bool

	return c.Subscribe(func(_ string, s core.State) {
		v := project(s)
		mu.Lock()
		if seen && eq(last, v) {
			mu.Unlock()
			return
		}
		last, seen = v, true
		mu.Unlock()
		fn(v)
	})
}

// WatchEqual is Watch with plain equality for comparable projections.
func WatchEqual[T comparable](c *Container, project func(core.State) T, fn func(T)) func() {
	return Watch(c, project, func(a, b T) bool { return a == b }, fn)
}
