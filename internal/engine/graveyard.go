package engine

import (
	"context"

	"lifeboard/internal/model"
	"lifeboard/internal/order"
)

// Bury detaches the task from its date into the graveyard. The task keeps
// its state and category; only the date goes.
func (e *Engine) Bury(date string, id model.TaskID) {
	e.mu.Lock()
	t, ok := e.store.Find(date, id)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.dropPendingLocked(id)

	buried := t
	buried.Date = nil
	cmd := newCommand([]string{date}, true, func(s *Store) {
		s.remove(date, id)
		s.bury(buried)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	cleared := ""
	patch := model.Patch{Date: &cleared}
	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// Resurrect pulls a buried task back onto targetDate's active partition,
// placed after the current last active task of its category.
func (e *Engine) Resurrect(id model.TaskID, targetDate string) {
	e.mu.Lock()
	t, ok := e.store.FindBuried(id)
	if !ok {
		e.mu.Unlock()
		return
	}

	p := model.Partition{Date: targetDate, Category: t.Category, State: model.StateActive}
	keys := e.siblingKeysLocked(p, id)

	revived := t
	revived.Date = &targetDate
	revived.State = model.StateActive
	revived.Order = order.ForIndex(keys, len(keys))

	cmd := newCommand([]string{targetDate}, true, func(s *Store) {
		s.exhume(id)
		s.put(revived)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	active := model.StateActive
	notDone := false
	patch := model.Patch{
		Date:      &targetDate,
		State:     &active,
		Completed: &notDone,
		Order:     &revived.Order,
	}
	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		_, err := e.remote.Patch(ctx, id, patch)
		return err
	})
}

// DeleteBuried removes a graveyard task permanently.
func (e *Engine) DeleteBuried(id model.TaskID) {
	e.mu.Lock()
	if _, ok := e.store.FindBuried(id); !ok {
		e.mu.Unlock()
		return
	}
	cmd := newCommand(nil, true, func(s *Store) {
		s.exhume(id)
	})
	cmd.apply(e.store)
	e.mu.Unlock()

	e.persist(cmd, "/api/tasks/"+string(id), func(ctx context.Context) error {
		return e.remote.Delete(ctx, id)
	})
}
