// Package store is the backend task repository and its REST surface: the
// durable side of the app that the client engine persists into.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"lifeboard/internal/dates"
	"lifeboard/internal/model"
)

var ErrNotFound = errors.New("task not found")

type ListFilter struct {
	// From/To bound the dated range (inclusive, YYYY-MM-DD); empty means
	// open on that side.
	From string
	To   string

	// Graveyard lists date-less tasks instead of the dated range.
	Graveyard bool
}

type Repo interface {
	Create(t model.Task) (model.Task, error)
	Get(id model.TaskID) (model.Task, error)
	Patch(id model.TaskID, p model.Patch) (model.Task, error)
	Delete(id model.TaskID) error
	List(filter ListFilter) ([]model.Task, error)

	// Batch operations apply one day's bulk gesture in a single call.
	BatchPunt(ids []model.TaskID, sourceDate, targetDate string) ([]model.Task, error)
	BatchFail(ids []model.TaskID) ([]model.Task, error)
	BatchGraveyard(ids []model.TaskID) ([]model.Task, error)
}

type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]model.Task

	// WorkOnWeekends mirrors the tasks.work_on_weekends config: when set,
	// batch punts stop sliding work tasks off Saturday/Sunday. Set before
	// the repo starts serving.
	WorkOnWeekends bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tasks: map[model.TaskID]model.Task{}}
}

// newID mints a task id when the client didn't supply one. Clients usually
// do (the optimistic insert needs an id before the create round-trips).
func newID() model.TaskID {
	return model.TaskID(uuid.NewString())
}

func prepareCreate(t *model.Task) {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.State == "" {
		t.State = model.StateActive
	}
	if t.Category == "" {
		t.Category = model.CategoryLife
	}
	if t.CreatedAt.IsZero() && t.Date != nil {
		t.CreatedAt = dates.Noon(*t.Date)
	}
}

func matchFilter(t model.Task, f ListFilter) bool {
	if f.Graveyard {
		return t.Date == nil
	}
	if t.Date == nil {
		return false
	}
	if f.From != "" && *t.Date < f.From {
		return false
	}
	if f.To != "" && *t.Date > f.To {
		return false
	}
	return true
}

func sortForList(out []model.Task) {
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		switch {
		case di == nil && dj == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
	})
}

// puntPatch is the batch-punt field logic shared by both repos: the task
// moves in place to target (work tasks slide off weekends unless the
// weekend policy allows them), returns to active, and puntDays is
// recomputed from createdAt.
func puntPatch(t model.Task, targetDate string, workOnWeekends bool) model.Patch {
	target := targetDate
	work := t.Category == model.CategoryWork
	if work && !workOnWeekends {
		target = dates.SkipWeekend(target)
	}
	active := model.StateActive
	days := dates.Span(t.CreatedAt, target, work)
	return model.Patch{Date: &target, State: &active, PuntDays: &days}
}

func failPatch() model.Patch {
	failed := model.StateFailed
	return model.Patch{State: &failed}
}

func graveyardPatch() model.Patch {
	// Empty date clears to nil; state and category stay put so the task
	// can be resurrected into an equivalent partition.
	clear := ""
	return model.Patch{Date: &clear}
}

func (r *MemoryRepo) Create(t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepareCreate(&t)
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) Get(id model.TaskID) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) Patch(id model.TaskID, p model.Patch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	t.Apply(p)
	r.tasks[id] = t
	return t, nil
}

func (r *MemoryRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepo) List(filter ListFilter) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if matchFilter(t, filter) {
			out = append(out, t)
		}
	}
	sortForList(out)
	return out, nil
}

func (r *MemoryRepo) batch(ids []model.TaskID, patchFor func(model.Task) model.Patch) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := r.tasks[id]
		if !ok {
			continue
		}
		t.Apply(patchFor(t))
		r.tasks[id] = t
		out = append(out, t)
	}
	return out, nil
}

func (r *MemoryRepo) BatchPunt(ids []model.TaskID, sourceDate, targetDate string) ([]model.Task, error) {
	_ = sourceDate // informational; the move is keyed by id
	return r.batch(ids, func(t model.Task) model.Patch {
		return puntPatch(t, targetDate, r.WorkOnWeekends)
	})
}

func (r *MemoryRepo) BatchFail(ids []model.TaskID) ([]model.Task, error) {
	return r.batch(ids, func(model.Task) model.Patch {
		return failPatch()
	})
}

func (r *MemoryRepo) BatchGraveyard(ids []model.TaskID) ([]model.Task, error) {
	return r.batch(ids, func(model.Task) model.Patch {
		return graveyardPatch()
	})
}
