// Package messaging builds admin/student chat threads, tracks what each
// viewer has read, keeps unread badges fresh and guards message sends.
package messaging

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/model"
)

// Store persists messages. Query returns exactly one direction, oldest
// first, and an empty slice when there is nothing.
type Store interface {
	Save(ctx context.Context, msg model.NewMessage) (*model.Message, error)
	Query(ctx context.Context, sender, receiver model.Participant) ([]model.Message, error)
}

// Roster lists students for badge sums and thread labels.
type Roster interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudent(ctx context.Context, id int) (*model.Student, error)
}

// Notifier is told about every newly delivered message.
type Notifier interface {
	MessageSent(ctx context.Context, msg *model.Message)
}

// BadgeSink receives recomputed badges for one viewer.
type BadgeSink interface {
	PublishBadge(viewer model.Participant, badge model.Badge)
}

type noopNotifier struct{}

func (noopNotifier) MessageSent(context.Context, *model.Message) {}
