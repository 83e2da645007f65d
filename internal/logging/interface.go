package logging

// Sender ships one batch of entries to the aggregation endpoint. It performs
// exactly one delivery attempt; retrying is the buffer's job.
type Sender interface {
	Send(entries []LogEntry) error
}

// Store is the durable home for entries that could not be delivered before
// shutdown or that exhausted their retry budget. All operations must accept
// empty input and treat missing underlying storage as an empty store.
type Store interface {
	// Save replaces everything currently stored.
	Save(entries []LogEntry) error
	// Append adds entries after whatever is already stored.
	Append(entries []LogEntry) error
	// LoadAndClear returns all stored entries and empties the store.
	LoadAndClear() ([]LogEntry, error)
	// Clear empties the store unconditionally.
	Clear() error
}

// DeviceInfoProvider supplies the two device labels attached to every stream.
// The engine treats both values as opaque strings.
type DeviceInfoProvider interface {
	DeviceModel() string
	OSVersion() string
}

// TriggerSource is an external source of flush signals, typically wired to
// host lifecycle events. The buffer subscribes while running and ignores the
// channel after Stop.
type TriggerSource interface {
	Flushes() <-chan struct{}
}
