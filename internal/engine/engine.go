package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifeboard/internal/dates"
	"lifeboard/internal/model"
	"lifeboard/internal/order"
)

// DefaultDebounce is how long a task's state toggles coalesce before the
// single surviving patch goes to the remote store.
const DefaultDebounce = 3 * time.Second

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ErrorReporter is called exactly once per failed remote call, with the
// HTTP status (zero for transport errors) and the route. The host app uses
// it for toast-style notification; the engine has already rolled back by
// the time it fires.
type ErrorReporter func(status int, route string)

type Options struct {
	Remote   Remote
	Debounce time.Duration // zero means DefaultDebounce
	OnError  ErrorReporter
	Clock    Clock // zero value means wall clock

	// WorkOnWeekends disables the weekend skip for work-category punts.
	WorkOnWeekends bool
}

// Engine owns the projection store and is the only component that talks to
// the remote. Every operation follows the same protocol: compute new field
// values and order key, apply optimistically, issue the remote call, and on
// failure restore the affected partitions and report once.
//
// The engine's host is conceptually single-threaded, but debounce timers
// and remote-call goroutines are real goroutines here, so the store is
// guarded by one mutex.
type Engine struct {
	mu      sync.Mutex
	store   *Store
	pending map[model.TaskID]*pendingPatch

	remote         Remote
	sched          *scheduler
	onError        ErrorReporter
	clock          Clock
	workOnWeekends bool

	inflight sync.WaitGroup
}

// pendingPatch accumulates debounced state changes for one task. cmd is
// the command from the first change in the window; rolling it back restores
// the state from before any of the coalesced toggles.
type pendingPatch struct {
	cmd   *command
	patch model.Patch
}

func New(opts Options) *Engine {
	if opts.Remote == nil {
		panic("engine: Remote is required")
	}
	window := opts.Debounce
	if window == 0 {
		window = DefaultDebounce
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{
		store:          NewStore(),
		pending:        map[model.TaskID]*pendingPatch{},
		remote:         opts.Remote,
		sched:          newScheduler(window),
		onError:        opts.OnError,
		clock:          clock,
		workOnWeekends: opts.WorkOnWeekends,
	}
}

// Load replaces the projection from the remote store. Unlike mutations it
// is synchronous: there is nothing optimistic about a read.
func (e *Engine) Load(ctx context.Context, from, to string) error {
	tasks, err := e.remote.List(ctx, from, to)
	if err != nil {
		e.report("/api/tasks", err)
		return err
	}
	buried, err := e.remote.Graveyard(ctx)
	if err != nil {
		e.report("/api/tasks", err)
		return err
	}

	e.mu.Lock()
	e.store.Replace(tasks, buried)
	e.mu.Unlock()
	return nil
}

// Partition returns the tasks in p, unsorted.
func (e *Engine) Partition(p model.Partition) []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Partition(p)
}

// PartitionSorted is the rendering-facing query: tasks in p, in display
// order.
func (e *Engine) PartitionSorted(p model.Partition) []model.Task {
	tasks := e.Partition(p)
	model.SortByOrder(tasks)
	return tasks
}

func (e *Engine) Day(date string) []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Day(date)
}

func (e *Engine) Find(date string, id model.TaskID) (model.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Find(date, id)
}

func (e *Engine) Buried() []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Graveyard()
}

func (e *Engine) FindBuried(id model.TaskID) (model.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.FindBuried(id)
}

// Add creates a task at the end of the date's active partition. CreatedAt
// is noon of the target date, not the wall clock, so a backdated task's
// later puntDays count from the day it conceptually belongs to.
func (e *Engine) Add(date string, category model.Category, text string) model.Task {
	e.mu.Lock()
	p := model.Partition{Date: date, Category: category, State: model.StateActive}
	keys := e.siblingKeysLocked(p, "")
	t := model.Task{
		ID:        model.TaskID(uuid.NewString()),
		Text:      text,
		Date:      &date,
		Category:  category,
		State:     model.StateActive,
		Order:     order.ForIndex(keys, len(keys)),
		CreatedAt: dates.Noon(date),
	}
	cmd := newCommand([]string{date}, false, func(s *Store) {
		s.put(t)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	e.persist(cmd, "/api/tasks", func(ctx context.Context) error {
		_, err := e.remote.Create(ctx, t)
		return err
	})
	return t
}

// ToggleCycle advances the task one step around the lifecycle. The store
// updates immediately; the remote patch is debounced, and a further toggle
// inside the window supersedes the pending one (immediate-state UI,
// last-state persistence).
func (e *Engine) ToggleCycle(date string, id model.TaskID) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.stageStateLocked(date, t, t.State.Cycle())
	e.mu.Unlock()
}

// SetState jumps the task straight to completed or failed (the hover
// quick actions). Same debounce discipline as ToggleCycle.
func (e *Engine) SetState(date string, id model.TaskID, state model.State) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok || t.State == state {
		e.mu.Unlock()
		return
	}
	e.stageStateLocked(date, t, state)
	e.mu.Unlock()
}

func (e *Engine) stageStateLocked(date string, t model.Task, next model.State) {
	updated := t
	updated.State = next
	cmd := newCommand([]string{date}, false, func(s *Store) {
		s.replaceTask(date, updated)
	})
	cmd.apply(e.store)

	st := next
	completed := next == model.StateCompleted
	patch := model.Patch{State: &st, Completed: &completed}
	if p, ok := e.pending[t.ID]; ok {
		// Keep the first command: rolling back a failed coalesced patch
		// must land before the whole toggle burst, not one click back.
		p.patch = patch
	} else {
		e.pending[t.ID] = &pendingPatch{cmd: cmd, patch: patch}
	}

	id := t.ID
	e.sched.schedule(id, func() {
		e.firePending(id)
	})
}

func (e *Engine) firePending(id model.TaskID) {
	e.mu.Lock()
	p, ok := e.pending[id]
	delete(e.pending, id)
	e.mu.Unlock()
	if !ok {
		return
	}

	patch := p.patch
	e.persist(p.cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// Flush fires every pending debounced call now. Call before shutdown so
// coalesced toggles are not lost.
func (e *Engine) Flush() {
	e.sched.flush()
}

// Wait blocks until all issued remote calls have resolved. Test and
// shutdown plumbing.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// dropPendingLocked discards a task's coalesced patch; the operation that
// replaces it persists the state on its own.
func (e *Engine) dropPendingLocked(id model.TaskID) {
	e.sched.cancel(id)
	delete(e.pending, id)
}

// Delete removes the task permanently. Immediate, no debounce.
func (e *Engine) Delete(date string, id model.TaskID) {
	e.mu.Lock()
	if _, ok := e.store.Find(date, id); !ok {
		e.mu.Unlock()
		return
	}
	e.dropPendingLocked(id)
	cmd := newCommand([]string{date}, false, func(s *Store) {
		s.remove(date, id)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		return e.remote.Delete(ctx, id)
	})
}

// Punt moves the task forward in place: a past task catches up to today, a
// today-or-future task advances one day, and work tasks slide off
// weekends. The task returns to active with puntDays recomputed from its
// original creation day. The failed slot it leaves behind is logical
// history, not a second record.
func (e *Engine) Punt(date string, id model.TaskID) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.dropPendingLocked(id)

	work := t.Category == model.CategoryWork
	today := dates.Today(e.clock.Now())
	target := dates.PuntTarget(date, today, work && !e.workOnWeekends)
	days := dates.Span(t.CreatedAt, target, work)

	updated := t
	updated.Date = &target
	updated.State = model.StateActive
	updated.PuntDays = days

	cmd := newCommand([]string{date, target}, false, func(s *Store) {
		s.remove(date, id)
		s.put(updated)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	active := model.StateActive
	notDone := false
	patch := model.Patch{Date: &target, State: &active, Completed: &notDone, PuntDays: &days}
	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// MoveToTop reorders the task before its first sibling in the same
// partition. No-op when it has no siblings.
func (e *Engine) MoveToTop(date string, id model.TaskID) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok {
		e.mu.Unlock()
		return
	}
	p, ok := t.PartitionKey()
	if !ok {
		e.mu.Unlock()
		return
	}
	siblings := 0
	for _, other := range e.store.Partition(p) {
		if other.ID != id {
			siblings++
		}
	}
	if siblings == 0 {
		e.mu.Unlock()
		return
	}

	key := order.ForIndex(e.siblingKeysLocked(p, id), 0)
	updated := t
	updated.Order = key
	cmd := newCommand([]string{date}, false, func(s *Store) {
		s.replaceTask(date, updated)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	patch := model.Patch{Order: &key}
	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// Move relocates the task into target at the given drop index, changing
// date, category, and state in one update. The drag path. A move into the
// task's own partition is a silent no-op.
func (e *Engine) Move(date string, id model.TaskID, target model.Partition, index int) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok || t.In(target) {
		e.mu.Unlock()
		return
	}
	e.dropPendingLocked(id)

	key := order.ForIndex(e.siblingKeysLocked(target, id), index)
	updated := t
	targetDate := target.Date
	updated.Date = &targetDate
	updated.Category = target.Category
	updated.State = target.State
	updated.Order = key

	cmd := newCommand([]string{date, target.Date}, false, func(s *Store) {
		s.remove(date, id)
		s.put(updated)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	completed := updated.Completed()
	patch := model.Patch{
		Date:      &targetDate,
		Category:  &target.Category,
		State:     &target.State,
		Completed: &completed,
		Order:     &key,
	}
	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// BatchPunt punts every listed task on date as one optimistic update and
// one remote call; rollback restores all affected dates atomically.
func (e *Engine) BatchPunt(date string, ids []model.TaskID) {
	e.mu.Lock()
	today := dates.Today(e.clock.Now())
	base := dates.PuntTarget(date, today, false)

	type move struct {
		id      model.TaskID
		updated model.Task
	}
	moves := []move{}
	cmdDates := []string{date}
	for _, id := range ids {
		t, ok := e.store.Find(date, id)
		if !ok {
			continue
		}
		e.dropPendingLocked(id)
		work := t.Category == model.CategoryWork
		target := base
		if work && !e.workOnWeekends {
			target = dates.SkipWeekend(target)
		}
		updated := t
		updated.Date = &target
		updated.State = model.StateActive
		updated.PuntDays = dates.Span(t.CreatedAt, target, work)
		moves = append(moves, move{id: id, updated: updated})
		cmdDates = append(cmdDates, target)
	}
	if len(moves) == 0 {
		e.mu.Unlock()
		return
	}

	cmd := newCommand(cmdDates, false, func(s *Store) {
		for _, m := range moves {
			s.remove(date, m.id)
			s.put(m.updated)
		}
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	batch := make([]model.TaskID, len(moves))
	for i, m := range moves {
		batch[i] = m.id
	}
	e.persist(cmd, "/api/tasks/batch/punt", func(ctx context.Context) error {
		return e.remote.BatchPunt(ctx, batch, date, base)
	})
}

// BatchFail marks every listed task on date failed in one update.
func (e *Engine) BatchFail(date string, ids []model.TaskID) {
	e.mu.Lock()
	updates := []model.Task{}
	for _, id := range ids {
		t, ok := e.store.Find(date, id)
		if !ok {
			continue
		}
		e.dropPendingLocked(id)
		t.State = model.StateFailed
		updates = append(updates, t)
	}
	if len(updates) == 0 {
		e.mu.Unlock()
		return
	}

	cmd := newCommand([]string{date}, false, func(s *Store) {
		for _, u := range updates {
			s.replaceTask(date, u)
		}
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	batch := make([]model.TaskID, len(updates))
	for i, u := range updates {
		batch[i] = u.ID
	}
	e.persist(cmd, "/api/tasks/batch/fail", func(ctx context.Context) error {
		return e.remote.BatchFail(ctx, batch)
	})
}

// BatchGraveyard detaches every listed task on date into the graveyard in
// one update.
func (e *Engine) BatchGraveyard(date string, ids []model.TaskID) {
	e.mu.Lock()
	buried := []model.Task{}
	for _, id := range ids {
		t, ok := e.store.Find(date, id)
		if !ok {
			continue
		}
		e.dropPendingLocked(id)
		t.Date = nil
		buried = append(buried, t)
	}
	if len(buried) == 0 {
		e.mu.Unlock()
		return
	}

	cmd := newCommand([]string{date}, true, func(s *Store) {
		for _, b := range buried {
			s.remove(date, b.ID)
			s.bury(b)
		}
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	batch := make([]model.TaskID, len(buried))
	for i, b := range buried {
		batch[i] = b.ID
	}
	e.persist(cmd, "/api/tasks/batch/graveyard", func(ctx context.Context) error {
		return e.remote.BatchGraveyard(ctx, batch)
	})
}

// siblingKeysLocked returns the sorted non-empty order keys in p, minus
// the task being placed.
func (e *Engine) siblingKeysLocked(p model.Partition, exclude model.TaskID) []string {
	tasks := e.store.Partition(p)
	model.SortByOrder(tasks)
	keys := []string{}
	for _, t := range tasks {
		if t.ID != exclude && t.Order != "" {
			keys = append(keys, t.Order)
		}
	}
	return keys
}

// persist issues the remote call off-thread; on failure it rolls the
// command back and reports once. There is no retry: the rolled-back store
// is last-known-good and the next user action proceeds against it.
func (e *Engine) persist(cmd *command, route string, call func(context.Context) error) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := call(context.Background()); err != nil {
			e.mu.Lock()
			cmd.invert(e.store)
			e.mu.Unlock()
			e.report(route, err)
		}
	}()
}

func (e *Engine) report(route string, err error) {
	if e.onError == nil {
		return
	}
	status := 0
	var re *RemoteError
	if errors.As(err, &re) {
		status = re.Status
		if re.Route != "" {
			route = re.Route
		}
	}
	e.onError(status, route)
}
