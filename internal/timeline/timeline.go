// Package timeline turns a conversation's message list into display order.
package timeline

import (
	"slices"
	"time"

	"github.com/matheus3301/inboxsync/internal/inbox"
)

// Item is one row of a transcript: either a day separator or a message.
type Item struct {
	Separator bool
	Day       time.Time // midnight of the separator's day, in the build location
	Label     string
	Message   inbox.Message
}

// Options select which messages belong to the transcript.
type Options struct {
	ConversationID string
	// SelfID and ParticipantID, when both set, restrict messages to those
	// two senders.
	SelfID        string
	ParticipantID string
	Location      *time.Location
	Now           time.Time
}

// Build filters msgs to the open conversation, sorts them oldest first and
// inserts a separator before the first message of each calendar day.
func Build(msgs []inbox.Message, opts Options) []Item {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	kept := make([]inbox.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ConversationID != opts.ConversationID {
			continue
		}
		if opts.SelfID != "" && opts.ParticipantID != "" &&
			m.Sender.ID != opts.SelfID && m.Sender.ID != opts.ParticipantID {
			continue
		}
		kept = append(kept, m)
	}
	slices.SortStableFunc(kept, func(a, b inbox.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	items := make([]Item, 0, len(kept)+1)
	var last time.Time
	for i, m := range kept {
		day := startOfDay(m.CreatedAt.In(loc))
		if i == 0 || !day.Equal(last) {
			items = append(items, Item{Separator: true, Day: day, Label: DayLabel(day, now.In(loc))})
			last = day
		}
		items = append(items, Item{Message: m})
	}
	return items
}

// DayLabel names day relative to now: "Today", "Yesterday", the weekday
// within the last week, otherwise a full date.
func DayLabel(day, now time.Time) string {
	today := startOfDay(now)
	day = startOfDay(day.In(now.Location()))
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.After(today.AddDate(0, 0, -7)) && day.Before(today):
		return day.Weekday().String()
	case day.Year() == today.Year():
		return day.Format("January 2")
	}
	return day.Format("January 2, 2006")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
