package transport

import "strings"

// ParserState names the position of the event-stream line parser.
type ParserState int

const (
	// StateIdle means no event type is pending.
	StateIdle ParserState = iota
	// StateSawEventType means an event: line has set the pending type.
	StateSawEventType
	// StateSawData means the last line emitted an event.
	StateSawData
)

// Event is one server-sent event: its type and data payload.
type Event struct {
	Type string
	Data string
}

// EventParser is a line-at-a-time parser for the minimal event-stream
// format the server emits: an "event:" line sets the pending event
// type, a "data:" line emits an event carrying that type, and a blank
// line resets the pending type. A data line without a preceding event
// line emits an event with an empty type.
type EventParser struct {
	state     ParserState
	eventType string
}

// State returns the parser's current state.
func (p *EventParser) State() ParserState { return p.state }

// Feed consumes one line. The returned bool is true when the line
// completed an event.
func (p *EventParser) Feed(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "event:"):
		p.eventType = strings.TrimSpace(line[len("event:"):])
		p.state = StateSawEventType
		return Event{}, false
	case strings.HasPrefix(line, "data:"):
		ev := Event{Type: p.eventType, Data: strings.TrimSpace(line[len("data:"):])}
		p.eventType = ""
		p.state = StateSawData
		return ev, true
	case line == "":
		p.eventType = ""
		p.state = StateIdle
		return Event{}, false
	default:
		// Comment or unknown field; the pending type survives.
		return Event{}, false
	}
}
