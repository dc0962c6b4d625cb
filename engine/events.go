package engine

import "time"

// Event names emitted by the engine for celebratory UI and notification
// triggering. Events are dispatched after the database transaction commits
// and after the per-user lock is released, with at-least-once semantics.
const (
	EventMilestoneReached = "milestone_reached"
	EventStreakBroken     = "streak_broken"
	EventStreakRestored   = "streak_restored"
)

// Event is one domain event. Only the fields relevant to the event name are
// populated.
type Event struct {
	Name           string    `json:"name"`
	UserID         uint      `json:"user_id"`
	DayKey         string    `json:"day_key,omitempty"`
	Threshold      int       `json:"threshold,omitempty"`
	Reward         int64     `json:"reward,omitempty"`
	PreviousStreak int       `json:"previous_streak,omitempty"`
	CurrentStreak  int       `json:"current_streak"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Listener receives engine events. Listeners must not block; slow side
// effects (push fan-out, cache refresh) should hand off to their own
// goroutines or queues.
type Listener func(Event)

// Subscribe registers a listener for all future events. Not safe to call
// concurrently with event dispatch; wire listeners during boot.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *Engine) publish(events []Event) {
	for _, ev := range events {
		for _, l := range e.listeners {
			l(ev)
		}
	}
}
