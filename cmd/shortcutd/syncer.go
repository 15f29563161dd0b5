package main

import (
	"sync"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
)

// lockedSyncer runs one engine call at a time across the HTTP and MQTT
// front ends.
type lockedSyncer struct {
	mu     sync.Mutex
	engine *orchestrator.Engine
}

func (s *lockedSyncer) Add(root string, app appinfo.App) (orchestrator.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Add(root, app)
}

func (s *lockedSyncer) Remove(root string, app appinfo.App) (orchestrator.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Remove(root, app)
}

func (s *lockedSyncer) Check(root, title string) (orchestrator.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Check(root, title)
}
