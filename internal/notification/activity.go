package notification

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
)

// ============================================
// Activity log sink
// ============================================

type activitySink struct {
	repo repository.TaskActivityRepository
}

// NewActivitySink writes every event into the task history.
func NewActivitySink(repo repository.TaskActivityRepository) Sink {
	return &activitySink{repo: repo}
}

func (s *activitySink) Name() string { return "activity" }

func (s *activitySink) Deliver(ctx context.Context, ev ChangeEvent) error {
	return s.repo.Create(ctx, ActivityRows(ev)...)
}

type fieldChange struct {
	field    string
	old, new *string
}

// ActivityRows turns an event into history rows, one per changed field.
// Events that change no tracked field still produce a single row so the
// action itself is recorded. Row ids derive from the event id, which
// makes redelivery harmless.
func ActivityRows(ev ChangeEvent) []*repository.TaskActivity {
	changes := diffTask(ev.Before, ev.After)
	if len(changes) == 0 {
		changes = []fieldChange{{}}
	}

	rows := make([]*repository.TaskActivity, 0, len(changes))
	for i, ch := range changes {
		row := &repository.TaskActivity{
			ID:          fmt.Sprintf("%s-%d", ev.ID, i),
			EventID:     ev.ID,
			WorkspaceID: ev.WorkspaceID,
			TaskID:      ev.TaskID,
			UserID:      ev.ActorID,
			Action:      string(ev.Kind),
			OldValue:    ch.old,
			NewValue:    ch.new,
			CreatedAt:   ev.Timestamp,
		}
		if ch.field != "" {
			field := ch.field
			row.FieldName = &field
		}
		rows = append(rows, row)
	}
	return rows
}

func diffTask(before, after *repository.Task) []fieldChange {
	if before == nil || after == nil {
		return nil
	}
	var out []fieldChange
	scalar := func(field, from, to string) {
		if from != to {
			out = append(out, fieldChange{field: field, old: &from, new: &to})
		}
	}
	list := func(field string, from, to []string) {
		if !slices.Equal(from, to) {
			o, n := strings.Join(from, ","), strings.Join(to, ",")
			out = append(out, fieldChange{field: field, old: &o, new: &n})
		}
	}

	scalar("title", before.Title, after.Title)
	scalar("description", before.Description, after.Description)
	scalar("status", string(before.Status), string(after.Status))
	scalar("progress", strconv.Itoa(before.Progress), strconv.Itoa(after.Progress))
	list("assigneeIds", before.AssigneeIDs, after.AssigneeIDs)
	list("dependsOn", before.DependsOn, after.DependsOn)

	for _, c := range after.Comments {
		prev := before.FindComment(c.ID)
		switch {
		case prev == nil:
			out = append(out, fieldChange{field: "comment", new: &c.Body})
		case c.Deleted && !prev.Deleted:
			out = append(out, fieldChange{field: "comment", old: &prev.Body})
		case prev.Body != c.Body:
			out = append(out, fieldChange{field: "comment", old: &prev.Body, new: &c.Body})
		}
	}
	for _, a := range after.Attachments {
		prev := before.FindAttachment(a.ID)
		switch {
		case prev == nil:
			out = append(out, fieldChange{field: "attachment", new: &a.FileRef})
		case a.Removed && !prev.Removed:
			out = append(out, fieldChange{field: "attachment", old: &prev.FileRef})
		}
	}
	return out
}
