// Package observability aggregates live relay counters for the debug
// endpoint and the telemetry worker. Counters are atomic; the process
// sample is guarded separately since it is written by one worker and
// read by HTTP handlers.
package observability

import (
	"sync"
	"sync/atomic"
)

type Stats struct {
	sessionsOpen     atomic.Int64
	sessionsTotal    atomic.Uint64
	eventsRouted     atomic.Uint64
	deliveriesFailed atomic.Uint64
	decodeFailures   atomic.Uint64
	messagesPosted   atomic.Uint64
	roomsDeleted     atomic.Uint64

	mu         sync.RWMutex
	rssBytes   uint64
	cpuPercent float64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) SessionOpened() {
	s.sessionsOpen.Add(1)
	s.sessionsTotal.Add(1)
}

func (s *Stats) SessionClosed()   { s.sessionsOpen.Add(-1) }
func (s *Stats) EventRouted()     { s.eventsRouted.Add(1) }
func (s *Stats) DeliveryFailed()  { s.deliveriesFailed.Add(1) }
func (s *Stats) DecodeFailure()   { s.decodeFailures.Add(1) }
func (s *Stats) MessagePosted()   { s.messagesPosted.Add(1) }
func (s *Stats) RoomDeleted()     { s.roomsDeleted.Add(1) }
func (s *Stats) SessionsOpen() int64 { return s.sessionsOpen.Load() }

// SetProcess records the latest self sample from the telemetry worker.
func (s *Stats) SetProcess(rssBytes uint64, cpuPercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rssBytes = rssBytes
	s.cpuPercent = cpuPercent
}

// Snapshot returns the current counters for the debug endpoint.
func (s *Stats) Snapshot() map[string]any {
	s.mu.RLock()
	rss, cpu := s.rssBytes, s.cpuPercent
	s.mu.RUnlock()

	return map[string]any{
		"sessions_open":     s.sessionsOpen.Load(),
		"sessions_total":    s.sessionsTotal.Load(),
		"events_routed":     s.eventsRouted.Load(),
		"deliveries_failed": s.deliveriesFailed.Load(),
		"decode_failures":   s.decodeFailures.Load(),
		"messages_posted":   s.messagesPosted.Load(),
		"rooms_deleted":     s.roomsDeleted.Load(),
		"rss_bytes":         rss,
		"cpu_percent":       cpu,
	}
}
