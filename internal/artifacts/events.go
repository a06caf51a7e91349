package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Event is one step-start or step-end record in an execution's
// events.jsonl. PrevEventHash chains each line to the one before it,
// so an auditor can detect a truncated or edited event stream by
// recomputing the chain.
type Event struct {
	Seq             int             `json:"seq"`
	ExecutionID     string          `json:"execution_id"`
	StepName        contracts.StepName `json:"step_name"`
	Phase           string          `json:"phase"` // "start" or "end"
	Status          contracts.Status   `json:"status,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	ErrorCode       contracts.ErrorCode `json:"error_code,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	PrevEventHash   string          `json:"prev_event_hash"`
	EventHash       string          `json:"event_hash"`
}

// EventLog appends hash-chained events to one execution's events.jsonl.
type EventLog struct {
	path string
	mu   sync.Mutex
	seq  int
	prev string
}

// OpenEventLog opens (creating if absent) the events.jsonl for
// executionID, replaying any existing lines to recover seq/prev so the
// chain continues correctly across process restarts.
func (s *Store) OpenEventLog(executionID string) (*EventLog, error) {
	path := filepath.Join(s.Dir(executionID), "events.jsonl")
	el := &EventLog{path: path, prev: genesisHash}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return el, nil
		}
		return nil, fmt.Errorf("artifacts: reading %s: %w", path, err)
	}
	lines := splitLines(data)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("artifacts: parsing existing event: %w", err)
		}
		el.seq = ev.Seq
		el.prev = ev.EventHash
	}
	return el, nil
}

const genesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000"

// Append writes one event, chaining it to the previous event's hash.
func (el *EventLog) Append(executionID string, stepName contracts.StepName, phase string, status contracts.Status, duration time.Duration, errorCode contracts.ErrorCode) error {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.seq++
	ev := Event{
		Seq:             el.seq,
		ExecutionID:     executionID,
		StepName:        stepName,
		Phase:           phase,
		Status:          status,
		DurationSeconds: duration.Seconds(),
		ErrorCode:       errorCode,
		Timestamp:       time.Now().UTC(),
		PrevEventHash:   el.prev,
	}
	ev.EventHash = hashEvent(ev)
	el.prev = ev.EventHash

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("artifacts: marshaling event: %w", err)
	}
	f, err := os.OpenFile(el.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("artifacts: opening %s: %w", el.path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("artifacts: appending event: %w", err)
	}
	return nil
}

// hashEvent hashes the event's content fields plus its PrevEventHash,
// never its own EventHash (which does not exist yet at hash time).
func hashEvent(ev Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%f|%s|%s|%s",
		ev.Seq, ev.ExecutionID, ev.StepName, ev.Phase, ev.Status,
		ev.DurationSeconds, ev.ErrorCode, ev.Timestamp.Format(time.RFC3339Nano), ev.PrevEventHash)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// VerifyEventChain re-reads events.jsonl for executionID and recomputes
// every hash, returning an error at the first broken link — grounding
// for the offline bundle verifier's integrity check.
func (s *Store) VerifyEventChain(executionID string) error {
	path := filepath.Join(s.Dir(executionID), "events.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no events yet is not tampering
		}
		return fmt.Errorf("artifacts: reading %s: %w", path, err)
	}

	prev := genesisHash
	for i, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("artifacts: parsing event line %d: %w", i, err)
		}
		if ev.PrevEventHash != prev {
			return fmt.Errorf("artifacts: event %d: prev_event_hash mismatch (chain broken)", ev.Seq)
		}
		want := ev.EventHash
		got := hashEvent(Event{
			Seq: ev.Seq, ExecutionID: ev.ExecutionID, StepName: ev.StepName, Phase: ev.Phase,
			Status: ev.Status, DurationSeconds: ev.DurationSeconds, ErrorCode: ev.ErrorCode,
			Timestamp: ev.Timestamp, PrevEventHash: ev.PrevEventHash,
		})
		if got != want {
			return fmt.Errorf("artifacts: event %d: event_hash mismatch (tampered)", ev.Seq)
		}
		prev = ev.EventHash
	}
	return nil
}

// ReadEvents reads and parses every event for executionID, in
// append order, for the get_execution_events boundary operation.
func (s *Store) ReadEvents(executionID string) ([]Event, error) {
	path := filepath.Join(s.Dir(executionID), "events.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifacts: reading %s: %w", path, err)
	}
	var events []Event
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("artifacts: parsing event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
