package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var buffer = NewRingBuffer(256)

var totalCount atomic.Int64

// Sink persists events. Journal stores implement it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error
}

var (
	sink            Sink
	sinkMu          sync.RWMutex
	sinkErrorLogged bool

	output   io.Writer
	outputMu sync.Mutex
)

// SetSink sets the store events are persisted to. nil disables
// persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

// SetOutput sets where each event is written as one JSON line. nil
// disables line output.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event: it is buffered for recent-event queries, fanned
// out to subscribers, persisted to the sink, and written to the output.
// It returns the JSON encoding of the event.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalCount.Add(1)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	errorLogged := sinkErrorLogged
	sinkMu.RUnlock()

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields); err != nil && !errorLogged {
			// Log once. The error goes straight into the buffer, not
			// through Emit, so a failing sink cannot recurse.
			sinkMu.Lock()
			first := !sinkErrorLogged
			sinkErrorLogged = true
			sinkMu.Unlock()
			if first {
				buffer.Add(Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "journal append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				})
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outputMu.Lock()
	if output != nil {
		output.Write(append(b, '\n'))
	}
	outputMu.Unlock()

	return b, nil
}

// Info emits an info-level event, ignoring the result. Names are
// compile-time constants, so validation failures are programming errors
// caught by tests.
func Info(name string, fields map[string]interface{}) {
	Emit("info", name, "", fields)
}

// Warn emits a warn-level event with a message.
func Warn(name, msg string, fields map[string]interface{}) {
	Emit("warn", name, msg, fields)
}

// Error emits an error-level event with a message.
func Error(name, msg string, fields map[string]interface{}) {
	Emit("error", name, msg, fields)
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalCount.Load()
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
