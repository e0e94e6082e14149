package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/precedent2txt/constants"
	"github.com/joseph-ayodele/precedent2txt/internal/common"
)

// Event types emitted while a case is processed.
const (
	EventCaseNumber   = "case.number"
	EventState        = "case.state"
	EventPDFCacheHit  = "case.cache.pdf_hit"
	EventTextCacheHit = "case.cache.text_hit"
	EventFetchStart   = "case.fetch.start"
	EventFetchEnd     = "case.fetch.end"
	EventWriteStart   = "case.write.start"
	EventWriteEnd     = "case.write.end"
	EventDiagnostic   = "case.diagnostic"
	EventFailed       = "case.failed"
)

// Event is one progress notification.
type Event struct {
	Type   string
	Case   string
	Status constants.CaseStatus
	Attrs  []any // slog-style key/value pairs
	Err    error
}

// EventSink receives progress events. Implementations must be safe for concurrent use.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, e Event) {
	logger := common.LoggerFrom(ctx, s.Logger)
	attrs := append([]any(nil), e.Attrs...)
	if common.CaseNameFromContext(ctx) == "" && e.Case != "" {
		attrs = append([]any{"case", e.Case}, attrs...)
	}
	if e.Status != "" {
		attrs = append(attrs, "status", string(e.Status))
	}
	switch {
	case e.Err != nil:
		logger.Error(e.Type, append(attrs, "error", e.Err)...)
	case e.Type == EventDiagnostic:
		logger.Warn(e.Type, attrs...)
	case e.Type == EventState:
		logger.Debug(e.Type, attrs...)
	default:
		logger.Info(e.Type, attrs...)
	}
}

// MemorySink keeps every event in order.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Emit(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types lists the event types seen for name, in order.
func (m *MemorySink) Types(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.Case == name {
			out = append(out, e.Type)
		}
	}
	return out
}
