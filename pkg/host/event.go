package host

import "context"

// EventType identifies a host event.
type EventType int

const (
	EventPreLogin EventType = iota
	EventJoin
	EventQuit
	EventChat
	EventCommand
	EventMove
	EventInteract
	EventBlockBreak
	EventBlockPlace
	EventDamage
	EventEditBook
	EventInteractAtEntity
	EventSwapHandItems
)

var eventNames = map[EventType]string{
	EventPreLogin:         "pre_login",
	EventJoin:             "join",
	EventQuit:             "quit",
	EventChat:             "chat",
	EventCommand:          "command",
	EventMove:             "move",
	EventInteract:         "interact",
	EventBlockBreak:       "block_break",
	EventBlockPlace:       "block_place",
	EventDamage:           "damage",
	EventEditBook:         "edit_book",
	EventInteractAtEntity: "interact_at_entity",
	EventSwapHandItems:    "swap_hand_items",
}

func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseEventType returns the event type named name.
func ParseEventType(name string) (EventType, bool) {
	for t, n := range eventNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Event is dispatched to listeners. Entity is nil for EventPreLogin, where
// only Name and IP are known.
type Event struct {
	Type    EventType
	Entity  Entity
	Name    string
	IP      string
	Message string // chat text or command line

	cancelled bool
	reason    string
}

// Cancel prevents the action behind the event. For EventPreLogin the
// reason is shown to the rejected player.
func (e *Event) Cancel(reason string) {
	e.cancelled = true
	if reason != "" {
		e.reason = reason
	}
}

// Cancelled reports whether a listener cancelled the event.
func (e *Event) Cancelled() bool { return e.cancelled }

// Reason returns the cancellation reason.
func (e *Event) Reason() string { return e.reason }

// Listener receives host events.
type Listener interface {
	Name() string
	Events() []EventType
	Handle(ctx context.Context, ev *Event)
}

// Handles reports whether l subscribes to t.
func Handles(l Listener, t EventType) bool {
	for _, et := range l.Events() {
		if et == t {
			return true
		}
	}
	return false
}
