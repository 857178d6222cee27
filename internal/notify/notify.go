// Package notify pushes job lifecycle events to the owner's room.
package notify

import (
	"context"

	"github.com/joseph-ayodele/funeral-audit/internal/entity"
)

// Event is one pushed message. Data always carries id and status.
type Event struct {
	Name   string         `json:"event"`
	UserID string         `json:"-"`
	Data   entity.JobView `json:"data"`
}

// Room is the delivery scope for a user's events.
func Room(userID string) string {
	return "user_" + userID
}

// JobEvent builds an event for job's current state.
func JobEvent(name string, job *entity.Job) Event {
	return Event{Name: name, UserID: job.UserID, Data: job.View()}
}

// Notifier delivers events. Implementations log failures and never return
// them; a lost event must not affect job processing.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Fanout delivers every event to each notifier in turn.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) {
	for _, n := range f {
		n.Notify(ctx, ev)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
