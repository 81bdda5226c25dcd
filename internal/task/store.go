package task

import "context"

// Store describes the persistence operations the task registry depends on.
// No business logic lives behind this interface; implementations must be
// swappable without changing registry behavior.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
	Update(ctx context.Context, id string, upd Update) (*Task, error)
	Delete(ctx context.Context, id string) error
}
