package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/five82/kdebridge/internal/protocol"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Devices             map[string]protocol.Device
	HasDevices          bool
	Statuses            []protocol.Status
	Bridge              protocol.BridgeState
	HasBridge           bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the bridge has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	statuses map[string]protocol.Status
}

// Apply folds a message received from the bridge into the store. It reports
// whether anything changed. Message types the UI does not display are ignored.
func (s *Store) Apply(msg protocol.Message) bool {
	payload, err := protocol.Decode(msg)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch p := payload.(type) {
	case protocol.Devices:
		if p.Request {
			return false
		}
		s.snapshot.Devices = protocol.CloneDevices(p.Devices)
		s.snapshot.HasDevices = true
	case protocol.StatusPayload:
		if s.statuses == nil {
			s.statuses = make(map[string]protocol.Status)
		}
		s.statuses[p.Status.Key] = p.Status
	case protocol.ClearStatusPayload:
		if _, ok := s.statuses[p.Key]; !ok {
			return false
		}
		delete(s.statuses, p.Key)
	default:
		return false
	}
	s.snapshot.LastUpdated = time.Now()
	return true
}

// UpdateBridge records the result of a poll. When err is non-nil the previous
// data is kept but the error is recorded for visibility.
func (s *Store) UpdateBridge(bridge *protocol.BridgeState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if bridge != nil {
		s.snapshot.Bridge = cloneBridge(*bridge)
		s.snapshot.HasBridge = true
		// The polled state is authoritative until the next pushed message.
		if !s.snapshot.HasDevices && bridge.Devices != nil {
			s.snapshot.Devices = protocol.CloneDevices(bridge.Devices)
			s.snapshot.HasDevices = true
		}
	} else {
		s.snapshot.HasBridge = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot. Statuses are ordered by key.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.Devices != nil {
		snap.Devices = protocol.CloneDevices(s.snapshot.Devices)
	}
	snap.Bridge = cloneBridge(s.snapshot.Bridge)
	snap.Statuses = nil
	for _, st := range s.statuses {
		snap.Statuses = append(snap.Statuses, st)
	}
	sort.Slice(snap.Statuses, func(i, j int) bool { return snap.Statuses[i].Key < snap.Statuses[j].Key })
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneBridge(b protocol.BridgeState) protocol.BridgeState {
	out := b
	if b.Devices != nil {
		out.Devices = protocol.CloneDevices(b.Devices)
	}
	out.Signals = append([]protocol.BadgeView(nil), b.Signals...)
	out.Menu = append([]protocol.MenuEntry(nil), b.Menu...)
	out.Statuses = append([]protocol.Status(nil), b.Statuses...)
	return out
}
