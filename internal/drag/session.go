// Package drag turns drag-and-drop gestures into engine moves. A session
// remembers where the task came from so a drop back onto the same spot can
// be recognized as a no-op without asking the engine.
package drag

import (
	"strings"

	"lifeboard/internal/engine"
	"lifeboard/internal/model"
)

// TargetGraveyard is the drop-target id for the graveyard container.
const TargetGraveyard = "graveyard"

// TargetID encodes a partition as a drop-target id, the string a container
// element carries in the DOM: "date|category|state".
func TargetID(p model.Partition) string {
	return p.Date + "|" + string(p.Category) + "|" + string(p.State)
}

// ParseTarget decodes a drop-target id. ok is false for the graveyard id
// and for anything malformed.
func ParseTarget(id string) (model.Partition, bool) {
	parts := strings.Split(id, "|")
	if len(parts) != 3 || parts[0] == "" {
		return model.Partition{}, false
	}
	return model.Partition{
		Date:     parts[0],
		Category: model.Category(parts[1]),
		State:    model.State(parts[2]),
	}, true
}

// Session is one drag gesture. Zero value is idle; Start begins a gesture,
// Drop or Cancel ends it. Not safe for concurrent use; drags are
// single-pointer by nature.
type Session struct {
	engine *engine.Engine

	active bool
	id     model.TaskID
	source model.Partition
}

func NewSession(e *engine.Engine) *Session {
	return &Session{engine: e}
}

func (s *Session) Active() bool { return s.active }

// Dragging returns the id of the task in flight, or "" when idle.
func (s *Session) Dragging() model.TaskID {
	if !s.active {
		return ""
	}
	return s.id
}

// Start begins dragging the task. Returns false if the task is not in the
// projection or sits in the graveyard (buried tasks are resurrected through
// their own control, not dragged).
func (s *Session) Start(date string, id model.TaskID) bool {
	t, ok := s.engine.Find(date, id)
	if !ok {
		return false
	}
	p, ok := t.PartitionKey()
	if !ok {
		return false
	}
	s.active = true
	s.id = id
	s.source = p
	return true
}

// Drop ends the gesture on the container identified by targetID, at the
// given insertion index within it. A drop on the source partition does
// nothing; a drop on an unknown target is treated as a cancel.
func (s *Session) Drop(targetID string, index int) {
	if !s.active {
		return
	}
	id, source := s.id, s.source
	s.reset()

	if targetID == TargetGraveyard {
		s.engine.Bury(source.Date, id)
		return
	}
	target, ok := ParseTarget(targetID)
	if !ok || target == source {
		return
	}
	s.engine.Move(source.Date, id, target, index)
}

// Cancel ends the gesture with no move. The drop-outside-any-container
// path.
func (s *Session) Cancel() {
	s.reset()
}

func (s *Session) reset() {
	s.active = false
	s.id = ""
	s.source = model.Partition{}
}
