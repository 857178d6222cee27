package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/funeral-audit/constants"
	"github.com/joseph-ayodele/funeral-audit/internal/entity"
)

func job(user string) *entity.Job {
	return &entity.Job{ID: uuid.New(), UserID: user, Status: constants.JobStatusProcessing, CreatedAt: time.Now()}
}

func TestHubDeliversToOwnerRoomOnly(t *testing.T) {
	hub := NewHub(4, nil)
	alice := hub.Subscribe("alice")
	defer alice.Close()
	bob := hub.Subscribe("bob")
	defer bob.Close()

	j := job("alice")
	hub.Notify(context.Background(), JobEvent(constants.EventJobProgress, j))

	select {
	case ev := <-alice.C:
		if ev.Name != constants.EventJobProgress || ev.Data.ID != j.ID.String() || ev.Data.Status != "processing" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("alice got nothing")
	}
	select {
	case ev := <-bob.C:
		t.Errorf("bob got %+v", ev)
	default:
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe("u")
	j := job("u")
	for i := 0; i < 3; i++ {
		hub.Notify(context.Background(), JobEvent(constants.EventJobUpdate, j))
	}
	if len(sub.C) != 1 {
		t.Errorf("buffered = %d, want 1", len(sub.C))
	}
	sub.Close()
	sub.Close()
	if hub.Subscribers("u") != 0 {
		t.Errorf("subscriber not removed")
	}
	<-sub.C
	if _, open := <-sub.C; open {
		t.Error("channel still open after Close")
	}
}

func TestFanout(t *testing.T) {
	a, b := NewHub(1, nil), NewHub(1, nil)
	sa, sb := a.Subscribe("u"), b.Subscribe("u")
	Fanout{a, Nop{}, b}.Notify(context.Background(), JobEvent(constants.EventNewJob, job("u")))
	if len(sa.C) != 1 || len(sb.C) != 1 {
		t.Errorf("fanout delivered %d/%d", len(sa.C), len(sb.C))
	}
	if Room("42") != "user_42" {
		t.Errorf("room = %s", Room("42"))
	}
}
