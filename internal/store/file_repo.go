package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"lifeboard/internal/model"
)

type fileState struct {
	Tasks map[model.TaskID]model.Task `json:"tasks"`
}

func newFileState() fileState {
	return fileState{Tasks: map[model.TaskID]model.Task{}}
}

// FileRepo persists tasks to a single JSON file. It is the durable store
// behind the REST API; the app is single-user, so there is no per-user
// scoping.
type FileRepo struct {
	mu   sync.RWMutex
	path string
	s    fileState

	// WorkOnWeekends mirrors the tasks.work_on_weekends config; see
	// MemoryRepo.WorkOnWeekends.
	WorkOnWeekends bool
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "tasks.json"),
		s:    newFileState(),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.s = newFileState()
			return nil
		}
		return err
	}

	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Tasks == nil {
		loaded.Tasks = map[model.TaskID]model.Task{}
	}
	r.s = loaded
	return nil
}

func (r *FileRepo) saveLocked() error {
	b, err := json.MarshalIndent(r.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, b, 0o644)
}

func (r *FileRepo) Create(t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepareCreate(&t)
	r.s.Tasks[t.ID] = t
	if err := r.saveLocked(); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *FileRepo) Get(id model.TaskID) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.s.Tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

func (r *FileRepo) Patch(id model.TaskID, p model.Patch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	t.Apply(p)
	r.s.Tasks[id] = t
	if err := r.saveLocked(); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (r *FileRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.s.Tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.Tasks, id)
	return r.saveLocked()
}

func (r *FileRepo) List(filter ListFilter) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Task, 0, len(r.s.Tasks))
	for _, t := range r.s.Tasks {
		if matchFilter(t, filter) {
			out = append(out, t)
		}
	}
	sortForList(out)
	return out, nil
}

func (r *FileRepo) batch(ids []model.TaskID, patchFor func(model.Task) model.Patch) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := r.s.Tasks[id]
		if !ok {
			continue
		}
		t.Apply(patchFor(t))
		r.s.Tasks[id] = t
		out = append(out, t)
	}
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *FileRepo) BatchPunt(ids []model.TaskID, sourceDate, targetDate string) ([]model.Task, error) {
	_ = sourceDate
	return r.batch(ids, func(t model.Task) model.Patch {
		return puntPatch(t, targetDate, r.WorkOnWeekends)
	})
}

func (r *FileRepo) BatchFail(ids []model.TaskID) ([]model.Task, error) {
	return r.batch(ids, func(model.Task) model.Patch {
		return failPatch()
	})
}

func (r *FileRepo) BatchGraveyard(ids []model.TaskID) ([]model.Task, error) {
	return r.batch(ids, func(model.Task) model.Patch {
		return graveyardPatch()
	})
}
