package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(p *EventParser, lines []string) []Event {
	var events []Event
	for _, line := range lines {
		if ev, ok := p.Feed(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestEventParser(t *testing.T) {
	t.Run("event then data emits typed event", func(t *testing.T) {
		var p EventParser
		events := feedAll(&p, []string{"event: endpoint", "data: /messages?session=1", ""})

		assert.Equal(t, []Event{{Type: "endpoint", Data: "/messages?session=1"}}, events)
		assert.Equal(t, StateIdle, p.State())
	})

	t.Run("data line resets the pending type", func(t *testing.T) {
		var p EventParser
		events := feedAll(&p, []string{
			"event: message",
			"data: first",
			"data: second",
		})

		assert.Equal(t, []Event{
			{Type: "message", Data: "first"},
			{Type: "", Data: "second"},
		}, events)
	})

	t.Run("blank line resets pending type without emitting", func(t *testing.T) {
		var p EventParser
		events := feedAll(&p, []string{"event: message", "", "data: orphan"})

		assert.Equal(t, []Event{{Type: "", Data: "orphan"}}, events)
	})

	t.Run("event type without data line emits nothing", func(t *testing.T) {
		var p EventParser
		events := feedAll(&p, []string{"event: keepalive", ""})

		assert.Empty(t, events)
		assert.Equal(t, StateIdle, p.State())
	})

	t.Run("unknown lines keep the pending type", func(t *testing.T) {
		var p EventParser
		events := feedAll(&p, []string{"event: message", ": comment", "data: payload"})

		assert.Equal(t, []Event{{Type: "message", Data: "payload"}}, events)
	})

	t.Run("state transitions are named", func(t *testing.T) {
		var p EventParser
		assert.Equal(t, StateIdle, p.State())

		p.Feed("event: endpoint")
		assert.Equal(t, StateSawEventType, p.State())

		p.Feed("data: /messages")
		assert.Equal(t, StateSawData, p.State())

		p.Feed("")
		assert.Equal(t, StateIdle, p.State())
	})
}
