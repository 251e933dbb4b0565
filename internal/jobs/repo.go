package jobs

import "context"

// Repo persists batch jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job Job) error
}
