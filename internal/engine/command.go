package engine

import "lifeboard/internal/model"

// command is one optimistic mutation. apply captures the date partitions
// (and graveyard, when touched) it is about to change, then mutates the
// store; invert restores the captured copies bit for bit. Batch operations
// are a single command over several dates, so their rollback is atomic.
type command struct {
	dates     []string
	graveyard bool
	mutate    func(*Store)

	saved     map[string][]model.Task
	savedYard []model.Task
	applied   bool
}

func newCommand(dates []string, graveyard bool, mutate func(*Store)) *command {
	return &command{dates: dates, graveyard: graveyard, mutate: mutate}
}

func (c *command) apply(s *Store) {
	c.saved = map[string][]model.Task{}
	for _, d := range c.dates {
		if _, ok := c.saved[d]; ok {
			continue
		}
		c.saved[d] = append([]model.Task(nil), s.byDate[d]...)
	}
	if c.graveyard {
		c.savedYard = append([]model.Task(nil), s.graveyard...)
	}
	c.applied = true
	c.mutate(s)
}

func (c *command) invert(s *Store) {
	if !c.applied {
		return
	}
	for d, tasks := range c.saved {
		if len(tasks) == 0 {
			delete(s.byDate, d)
			continue
		}
		s.byDate[d] = append([]model.Task(nil), tasks...)
	}
	if c.graveyard {
		s.graveyard = append([]model.Task(nil), c.savedYard...)
	}
}
