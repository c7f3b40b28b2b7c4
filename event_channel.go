package lotto

import (
	"sync/atomic"
	"time"
)

type EventType string

const (
	TicketPurchased EventType = "TicketPurchased"
	DrawRequested   EventType = "DrawRequested"
	WinnerDrawn     EventType = "WinnerDrawn"
	PrizeClaimed    EventType = "PrizeClaimed"
	RoundStarted    EventType = "RoundStarted"
)

// Event is a notification emitted by the ledger after a committed operation.
// Fields not relevant to Type are left zero.
type Event struct {
	Type    EventType
	Round   uint64
	Caller  Address
	Winner  Address
	Amount  Amount
	Request RequestID
	Handle  Handle
	Time    time.Time
}

type EventSender interface {
	Send(e Event)
}

type EventReceiver interface {
	Receive() <-chan Event
}

// EventChannel is a buffered event queue. Send never blocks the ledger:
// events beyond the buffer size are dropped and counted.
type EventChannel struct {
	buffer  chan Event
	dropped int64
}

func NewEventChannel(size int) *EventChannel {
	return &EventChannel{
		buffer: make(chan Event, size),
	}
}

func (c *EventChannel) Send(e Event) {
	select {
	case c.buffer <- e:
	default:
		atomic.AddInt64(&c.dropped, 1)
	}
}

func (c *EventChannel) Receive() <-chan Event {
	return c.buffer
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *EventChannel) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}

// MultiSender fans an event out to several senders.
type MultiSender []EventSender

func (m MultiSender) Send(e Event) {
	for _, s := range m {
		if s != nil {
			s.Send(e)
		}
	}
}
