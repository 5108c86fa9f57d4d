// Package usersink records module activity in a go-users ActivitySink.
package usersink

import (
	"context"
	"slices"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-modkit/pkg/activity"
)

// Hook turns module events into go-users activity records. When Verbs is set
// only those verbs are recorded.
type Hook struct {
	Sink  usertypes.ActivitySink
	Verbs []string
}

// Notify logs event on the sink. Actor and tenant IDs that are not UUIDs are
// recorded as uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Valid() {
		return nil
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps a module event onto an ActivityRecord.
func Record(event activity.Event) usertypes.ActivityRecord {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return usertypes.ActivityRecord{
		ActorID:    userID(event.ActorID),
		TenantID:   userID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: activity.ObjectTypeModule,
		ObjectID:   event.ObjectID(),
		Channel:    event.Channel,
		Data:       event.Data(),
		OccurredAt: occurredAt,
	}
}

func userID(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}
