package session

import (
	"strconv"
	"sync"
	"time"

	"providence/internal/hostmsg"
)

const (
	EventConnectionStatus      = "connection_status"
	EventHostClientConstructed = "host_client_constructed"
	EventRequestEnded          = "request_ended"
	EventAckRequest            = "ack_request"
	EventAckRequestCleared     = "ack_request_cleared"
	EventFocusRequested        = "focus_requested"
	EventLobbyDisplay          = "lobby_display"
	EventLobbyPage             = "lobby_page"
	EventStarter               = "starter"
	EventGameCommand           = "game_command"
	EventGameOver              = "game_over"
)

type StreamEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	ClientID string `json:"client_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

// EventBuffer keeps the most recent events for replay and fans new ones out
// to subscribers. Slow subscribers miss events rather than stall the tick.
type EventBuffer struct {
	mu       sync.Mutex
	clientID string
	nextID   int64
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
}

func NewEventBuffer(clientID string, max int) *EventBuffer {
	if max <= 0 {
		max = 500
	}
	return &EventBuffer{
		clientID: clientID,
		max:      max,
		watchers: map[chan StreamEvent]struct{}{},
	}
}

func (b *EventBuffer) Append(event string, data any) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return StreamEvent{}
	}
	b.nextID++
	ev := StreamEvent{
		EventID:  strconv.FormatInt(b.nextID, 10),
		Event:    event,
		ClientID: b.clientID,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
			metricEventsDropped.Add(1)
		}
	}
	return ev
}

func (b *EventBuffer) ReplayAfter(lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]StreamEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]StreamEvent, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *EventBuffer) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *EventBuffer) Unsubscribe(ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *EventBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}

type ConnectionStatusEvent struct {
	Status string `json:"status"`
	Report string `json:"report"`
}

type GameOverEvent struct {
	GameID hostmsg.GameID         `json:"game_id"`
	Local  bool                   `json:"local"`
	Report hostmsg.GameOverReport `json:"report"`
}
