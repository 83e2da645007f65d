package logging

import (
	"fmt"
	"time"
)

// Level is the severity of a log entry. The zero value is LevelDebug.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

var levelNames = [...]string{"debug", "info", "warn", "error", "critical"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelCritical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelDebug || l > LevelCritical {
		return nil, fmt.Errorf("unknown level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel maps a lowercase level name back to its Level value.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelDebug, fmt.Errorf("unknown level %q", name)
}

// LogEntry is a single log record. Entries are immutable once constructed:
// the engine only ever moves them between queues, it never rewrites them.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Metadata  map[string]string
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(level Level, message string, metadata map[string]string) LogEntry {
	return NewEntryAt(time.Now(), level, message, metadata)
}

// NewEntryAt creates an entry with an explicit timestamp. Used when replaying
// persisted entries, which must keep their original production time.
func NewEntryAt(ts time.Time, level Level, message string, metadata map[string]string) LogEntry {
	return LogEntry{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
	}
}
