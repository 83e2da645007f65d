package testutils

import (
	"fmt"
	"sync"

	"github.com/telemetrykit/lokibuf/internal/logging"
)

// MockSender records every batch it is asked to deliver. Set ShouldFail (or
// FailWith for a specific error) to make every attempt fail; Calls counts
// attempts either way.
type MockSender struct {
	mu         sync.Mutex
	Batches    [][]logging.LogEntry
	Calls      int
	ShouldFail bool
	FailWith   error
}

func (m *MockSender) Send(entries []logging.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.ShouldFail {
		if m.FailWith != nil {
			return m.FailWith
		}
		return fmt.Errorf("mock send failed")
	}

	batch := make([]logging.LogEntry, len(entries))
	copy(batch, entries)
	m.Batches = append(m.Batches, batch)
	return nil
}

func (m *MockSender) GetBatches() [][]logging.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Batches
}

func (m *MockSender) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *MockSender) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
}

// MockStore is an in-memory logging.Store with per-operation error
// injection.
type MockStore struct {
	mu       sync.Mutex
	Entries  []logging.LogEntry
	FailLoad bool
	FailSave bool

	AppendCalls int
	LoadCalls   int
}

func (m *MockStore) Save(entries []logging.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave {
		return fmt.Errorf("mock save failed")
	}
	m.Entries = append([]logging.LogEntry(nil), entries...)
	return nil
}

func (m *MockStore) Append(entries []logging.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.FailSave {
		return fmt.Errorf("mock append failed")
	}
	m.Entries = append(m.Entries, entries...)
	return nil
}

func (m *MockStore) LoadAndClear() ([]logging.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.FailLoad {
		return nil, fmt.Errorf("mock load failed")
	}
	entries := m.Entries
	m.Entries = nil
	return entries, nil
}

func (m *MockStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = nil
	return nil
}

func (m *MockStore) GetEntries() []logging.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logging.LogEntry(nil), m.Entries...)
}

// MockTrigger is a hand-operated flush trigger source.
type MockTrigger struct {
	ch chan struct{}
}

func NewMockTrigger() *MockTrigger {
	return &MockTrigger{ch: make(chan struct{}, 1)}
}

func (t *MockTrigger) Flushes() <-chan struct{} {
	return t.ch
}

func (t *MockTrigger) Fire() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// StaticDeviceInfo returns fixed device labels for tests.
type StaticDeviceInfo struct {
	Model   string
	Version string
}

func (d StaticDeviceInfo) DeviceModel() string { return d.Model }
func (d StaticDeviceInfo) OSVersion() string   { return d.Version }
