package engine

import (
	"context"
	"fmt"

	"lifeboard/internal/model"
)

// Remote is the persistence backend as the engine sees it: one method per
// endpoint family. Implementations must be safe for concurrent use; the
// engine issues calls from short-lived goroutines and never serializes
// calls for different tasks against each other.
type Remote interface {
	List(ctx context.Context, from, to string) ([]model.Task, error)
	Graveyard(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Patch(ctx context.Context, id model.TaskID, p model.Patch) (model.Task, error)
	Delete(ctx context.Context, id model.TaskID) error
	BatchPunt(ctx context.Context, ids []model.TaskID, sourceDate, targetDate string) error
	BatchFail(ctx context.Context, ids []model.TaskID) error
	BatchGraveyard(ctx context.Context, ids []model.TaskID) error
}

// RemoteError is a failed remote call: a non-2xx response (Status set) or a
// transport error (Status zero). Route identifies the endpoint for the
// error-reporting callback.
type RemoteError struct {
	Status int
	Route  string
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s: %s", e.Route, e.Msg)
	}
	return fmt.Sprintf("remote %s: status %d: %s", e.Route, e.Status, e.Msg)
}
