package model

import (
	"encoding/json"
	"sort"
	"time"
)

type TaskID string

type Category string

const (
	CategoryLife Category = "life"
	CategoryWork Category = "work"
)

type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Cycle returns the next lifecycle state for the single-click trigger:
// active -> completed -> failed -> active. There is no terminal state.
func (s State) Cycle() State {
	switch s {
	case StateActive:
		return StateCompleted
	case StateCompleted:
		return StateFailed
	default:
		return StateActive
	}
}

// Task is the central entity. State is authoritative for the lifecycle; the
// legacy "completed" boolean only exists on the wire and is derived from it.
type Task struct {
	ID       TaskID
	Text     string
	Date     *string // YYYY-MM-DD; nil means the task sits in the graveyard
	Category Category
	State    State
	// Order is the task's fractional sort key within its partition. Empty
	// means unordered: the task sorts after every keyed sibling, in arrival
	// order.
	Order     string
	CreatedAt time.Time
	// PuntDays is informational: days between CreatedAt and the current
	// date, recomputed on every punt, never accumulated.
	PuntDays int
}

// Completed reports the legacy boolean, derived from State.
func (t Task) Completed() bool {
	return t.State == StateCompleted
}

// Partition is the (date, category, state) triple that scopes ordering and
// containment. Order keys are only comparable within one partition.
type Partition struct {
	Date     string   `json:"date"`
	Category Category `json:"category"`
	State    State    `json:"state"`
}

// PartitionKey returns the task's partition. ok is false for graveyard
// tasks, which have no partition membership.
func (t Task) PartitionKey() (Partition, bool) {
	if t.Date == nil {
		return Partition{}, false
	}
	return Partition{Date: *t.Date, Category: t.Category, State: t.State}, true
}

// In reports whether the task currently belongs to p.
func (t Task) In(p Partition) bool {
	got, ok := t.PartitionKey()
	return ok && got == p
}

// taskWire is the persisted JSON shape. It carries the redundant
// "completed" field expected by older rows; State wins when both are set.
type taskWire struct {
	ID        TaskID    `json:"id"`
	Text      string    `json:"text"`
	Date      *string   `json:"date"`
	Category  Category  `json:"category"`
	State     State     `json:"state,omitempty"`
	Completed bool      `json:"completed"`
	Order     string    `json:"order,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	PuntDays  int       `json:"puntDays"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskWire{
		ID:        t.ID,
		Text:      t.Text,
		Date:      t.Date,
		Category:  t.Category,
		State:     t.State,
		Completed: t.Completed(),
		Order:     t.Order,
		CreatedAt: t.CreatedAt,
		PuntDays:  t.PuntDays,
	})
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	state := w.State
	if state == "" {
		// Legacy rows only carry the boolean.
		if w.Completed {
			state = StateCompleted
		} else {
			state = StateActive
		}
	}
	*t = Task{
		ID:        w.ID,
		Text:      w.Text,
		Date:      w.Date,
		Category:  w.Category,
		State:     state,
		Order:     w.Order,
		CreatedAt: w.CreatedAt,
		PuntDays:  w.PuntDays,
	}
	return nil
}

// Patch is a partial update.
// nil pointer => "no change"
// empty string for Date => clear (move to graveyard)
type Patch struct {
	Text      *string   `json:"text,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	State     *State    `json:"state,omitempty"`
	Date      *string   `json:"date,omitempty"`
	Category  *Category `json:"category,omitempty"`
	Order     *string   `json:"order,omitempty"`
	PuntDays  *int      `json:"puntDays,omitempty"`
}

// Apply folds the patch into t. State and the legacy completed flag are
// reconciled here so the two can never drift: an explicit State wins, a
// bare Completed toggle maps onto the state machine.
func (t *Task) Apply(p Patch) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.State != nil {
		t.State = *p.State
	} else if p.Completed != nil {
		if *p.Completed {
			t.State = StateCompleted
		} else if t.State == StateCompleted {
			t.State = StateActive
		}
	}
	if p.Date != nil {
		if *p.Date == "" {
			t.Date = nil
		} else {
			d := *p.Date
			t.Date = &d
		}
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.PuntDays != nil {
		t.PuntDays = *p.PuntDays
	}
}

// SortByOrder sorts tasks by their order key in place. Keyless tasks come
// after every keyed one; the sort is stable, so they keep arrival order, as
// do accidental key ties.
func SortByOrder(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Order, tasks[j].Order
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})
}
