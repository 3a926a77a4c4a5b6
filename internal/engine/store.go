// Package engine is the client-side task engine: an in-memory projection of
// the remote store, partitioned by date, plus the optimistic mutation
// operations that keep it and the backend in sync.
package engine

import "lifeboard/internal/model"

// Store is the projection. It is owned by the Engine; nothing mutates it
// except commands running under the engine's lock, so rollback has a single
// source of truth.
type Store struct {
	byDate    map[string][]model.Task
	graveyard []model.Task
}

func NewStore() *Store {
	return &Store{byDate: map[string][]model.Task{}}
}

// Replace loads the projection wholesale from remote list results.
func (s *Store) Replace(tasks, graveyard []model.Task) {
	s.byDate = map[string][]model.Task{}
	for _, t := range tasks {
		if t.Date == nil {
			continue
		}
		s.byDate[*t.Date] = append(s.byDate[*t.Date], t)
	}
	s.graveyard = append([]model.Task(nil), graveyard...)
}

// Day returns a copy of the tasks filed under date, in arrival order.
func (s *Store) Day(date string) []model.Task {
	return append([]model.Task(nil), s.byDate[date]...)
}

// Partition returns the tasks in p, filtered but deliberately unsorted:
// callers sort by order key when they need display order.
func (s *Store) Partition(p model.Partition) []model.Task {
	out := []model.Task{}
	for _, t := range s.byDate[p.Date] {
		if t.In(p) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Find(date string, id model.TaskID) (model.Task, bool) {
	for _, t := range s.byDate[date] {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Graveyard returns a copy of the date-less side list.
func (s *Store) Graveyard() []model.Task {
	return append([]model.Task(nil), s.graveyard...)
}

func (s *Store) FindBuried(id model.TaskID) (model.Task, bool) {
	for _, t := range s.graveyard {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// put files a dated task at the end of its day list (arrival order).
func (s *Store) put(t model.Task) {
	if t.Date == nil {
		return
	}
	s.byDate[*t.Date] = append(s.byDate[*t.Date], t)
}

// replaceTask swaps the task with updated.ID in date's list, keeping its
// slot so arrival order is undisturbed.
func (s *Store) replaceTask(date string, updated model.Task) {
	list := s.byDate[date]
	for i, t := range list {
		if t.ID == updated.ID {
			list[i] = updated
			return
		}
	}
}

func (s *Store) remove(date string, id model.TaskID) (model.Task, bool) {
	list := s.byDate[date]
	for i, t := range list {
		if t.ID == id {
			s.byDate[date] = append(list[:i:i], list[i+1:]...)
			return t, true
		}
	}
	return model.Task{}, false
}

// bury appends to the graveyard side list; the task must already be
// detached (nil date).
func (s *Store) bury(t model.Task) {
	s.graveyard = append(s.graveyard, t)
}

func (s *Store) exhume(id model.TaskID) (model.Task, bool) {
	for i, t := range s.graveyard {
		if t.ID == id {
			s.graveyard = append(s.graveyard[:i:i], s.graveyard[i+1:]...)
			return t, true
		}
	}
	return model.Task{}, false
}
