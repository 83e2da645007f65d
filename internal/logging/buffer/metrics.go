package buffer

import (
	"sync"
)

// Metrics counts engine activity. Readers take a Stamp; the engine calls
// the increment methods.
type Metrics struct {
	EntriesAppended  int
	EntriesEvicted   int
	EntriesDropped   int
	EntriesPersisted int
	EntriesRecovered int
	BatchesSent      int
	BatchesFailed    int
	mu               sync.RWMutex
}

func (m *Metrics) IncEntriesAppended() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesAppended++
}

func (m *Metrics) IncEntriesEvicted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesEvicted++
}

func (m *Metrics) IncEntriesDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesDropped++
}

func (m *Metrics) AddEntriesPersisted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesPersisted += n
}

func (m *Metrics) AddEntriesRecovered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesRecovered += n
}

func (m *Metrics) IncBatchesSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesSent++
}

func (m *Metrics) IncBatchesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesFailed++
}

func (m *Metrics) Stamp() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		EntriesAppended:  m.EntriesAppended,
		EntriesEvicted:   m.EntriesEvicted,
		EntriesDropped:   m.EntriesDropped,
		EntriesPersisted: m.EntriesPersisted,
		EntriesRecovered: m.EntriesRecovered,
		BatchesSent:      m.BatchesSent,
		BatchesFailed:    m.BatchesFailed,
	}
}
