package lotto

import (
	"fmt"
	"strings"
	"sync"

	"github.com/DE-labtory/iLogger"
)

type Tracer interface {
	Log(keyvals ...string)
	Trace()
}

// MemCacheTracer keeps trace lines in memory until Trace flushes them.
type MemCacheTracer struct {
	lock      sync.RWMutex
	traceList []string
}

func NewMemCacheTracer() *MemCacheTracer {
	return &MemCacheTracer{
		lock:      sync.RWMutex{},
		traceList: make([]string, 0),
	}
}

func (t *MemCacheTracer) Log(keyvals ...string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(keyvals) == 0 {
		return
	}
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, "")
	}

	kvs := make([]string, 0)

	for i := 0; i < len(keyvals); i += 2 {
		k, v := keyvals[i], keyvals[i+1]
		kvs = append(kvs, fmt.Sprintf("%s=%s", k, v))
	}
	trace := strings.Join(kvs, " ")
	t.traceList = append(t.traceList, trace)
}

// Lines returns a copy of the buffered trace lines.
func (t *MemCacheTracer) Lines() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()

	lines := make([]string, len(t.traceList))
	copy(lines, t.traceList)
	return lines
}

// Trace flushes buffered lines to the info log and clears the buffer.
func (t *MemCacheTracer) Trace() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for _, trace := range t.traceList {
		iLogger.Info(nil, trace)
	}
	t.traceList = make([]string, 0)
}

// EventTracer records every ledger event as a trace line.
type EventTracer struct {
	*MemCacheTracer
}

func NewEventTracer() *EventTracer {
	return &EventTracer{MemCacheTracer: NewMemCacheTracer()}
}

func (t *EventTracer) Send(e Event) {
	keyvals := []string{"event", string(e.Type), "round", fmt.Sprint(e.Round)}
	switch e.Type {
	case TicketPurchased:
		keyvals = append(keyvals, "caller", e.Caller.String(), "amount", fmt.Sprint(e.Amount))
	case DrawRequested:
		keyvals = append(keyvals, "request", e.Request.String(), "handle", fmt.Sprintf("%x", []byte(e.Handle)))
	case WinnerDrawn:
		keyvals = append(keyvals, "winner", e.Winner.String(), "prize", fmt.Sprint(e.Amount))
	case PrizeClaimed:
		keyvals = append(keyvals, "winner", e.Winner.String(), "amount", fmt.Sprint(e.Amount))
	}
	t.Log(keyvals...)
}
