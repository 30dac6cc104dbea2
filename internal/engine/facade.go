package engine

import (
	"context"
	"sync"
)

// Facade is the channel-side lookup object published per registered cache:
// a one-method lookup object published under the cache's name. The engine's
// own implementation wraps Engine.LookupByID for that cache's definition ID.
type Facade interface {
	Lookup(key string) (value string, found bool)
}

// FacadeSink abstracts the host's script/variable store where the channel
// lookup façade is published under the cache name. The engine publishes and
// retracts entries atomically with registration/unregistration; it never
// assumes anything about how the sink is implemented beyond these two
// operations.
type FacadeSink interface {
	Put(name string, facade Facade)
	Remove(name string)
}

// NoopFacadeSink discards every Put/Remove. Useful for hosts that drive the
// engine directly (e.g. the CLI) without a dynamic variable store.
type NoopFacadeSink struct{}

func (NoopFacadeSink) Put(string, Facade) {}
func (NoopFacadeSink) Remove(string)      {}

// MapFacadeSink is an in-process FacadeSink backed by a sync.Map, suitable
// for a single-process host that wants name-indexed lookup objects without
// building its own variable store.
type MapFacadeSink struct {
	m sync.Map
}

func NewMapFacadeSink() *MapFacadeSink { return &MapFacadeSink{} }

func (s *MapFacadeSink) Put(name string, facade Facade) { s.m.Store(name, facade) }

func (s *MapFacadeSink) Remove(name string) { s.m.Delete(name) }

// Lookup returns the façade registered under name, if any.
func (s *MapFacadeSink) Lookup(name string) (Facade, bool) {
	v, ok := s.m.Load(name)
	if !ok {
		return nil, false
	}
	return v.(Facade), true
}

// boundFacade binds Engine.LookupByID to one definition ID so the channel
// side doesn't need to know IDs at all, only the cache name.
type boundFacade struct {
	engine *Engine
	id     string
}

func (f boundFacade) Lookup(key string) (string, bool) {
	v, found, err := f.engine.LookupByID(context.Background(), f.id, key)
	if err != nil {
		return "", false
	}
	return v, found
}
