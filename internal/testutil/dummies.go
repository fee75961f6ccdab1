package testutil

import (
	"sync"

	"github.com/amine-CS96/seo-expert/internal/interfaces"
)

// DummyLogger is a no-op Logger that records entries so tests can assert
// on what was logged without producing output.
type DummyLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields []interfaces.Field
}

func (d *DummyLogger) record(level, msg string, fields []interfaces.Field) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Entries = append(d.Entries, LogEntry{Level: level, Msg: msg, Fields: fields})
}

func (d *DummyLogger) Debug(msg string, fields ...interfaces.Field) { d.record("debug", msg, fields) }
func (d *DummyLogger) Info(msg string, fields ...interfaces.Field)  { d.record("info", msg, fields) }
func (d *DummyLogger) Warn(msg string, fields ...interfaces.Field)  { d.record("warn", msg, fields) }
func (d *DummyLogger) Error(msg string, fields ...interfaces.Field) { d.record("error", msg, fields) }

func (d *DummyLogger) With(fields ...interfaces.Field) interfaces.Logger { return d }

// Count returns how many entries were recorded at the given level.
func (d *DummyLogger) Count(level string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
