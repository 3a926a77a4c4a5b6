package store

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lifeboard/internal/model"
)

type Handler struct {
	repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{repo: repo}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func parseIDs(raw []string) []model.TaskID {
	ids := make([]model.TaskID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		ids = append(ids, model.TaskID(s))
	}
	return ids
}

// /api/tasks  (collection)
func (h *Handler) TasksRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := ListFilter{
			From:      q.Get("from"),
			To:        q.Get("to"),
			Graveyard: q.Get("graveyard") == "1" || q.Get("graveyard") == "true",
		}
		ts, err := h.repo.List(filter)
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, ts)
		return

	case http.MethodPost:
		var in model.Task
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		if strings.TrimSpace(in.Text) == "" {
			writeErr(w, 400, "text is required")
			return
		}
		t, err := h.repo.Create(in)
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 201, t)
		return

	default:
		writeErr(w, 405, "method not allowed")
		return
	}
}

// /api/tasks/{id}
func (h *Handler) TasksSub(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeErr(w, 404, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.repo.Get(model.TaskID(id))
		if errors.Is(err, ErrNotFound) {
			writeErr(w, 404, "not found")
			return
		}
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, t)
		return

	case http.MethodPatch:
		var p model.Patch
		if err := decodeJSON(r, &p); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		t, err := h.repo.Patch(model.TaskID(id), p)
		if errors.Is(err, ErrNotFound) {
			writeErr(w, 404, "not found")
			return
		}
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, t)
		return

	case http.MethodDelete:
		err := h.repo.Delete(model.TaskID(id))
		if errors.Is(err, ErrNotFound) {
			writeErr(w, 404, "not found")
			return
		}
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true})
		return

	default:
		writeErr(w, 405, "method not allowed")
		return
	}
}

// /api/tasks/batch/punt { taskIds, sourceDate, targetDate }
func (h *Handler) BatchPunt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	var in struct {
		TaskIDs    []string `json:"taskIds"`
		SourceDate string   `json:"sourceDate"`
		TargetDate string   `json:"targetDate"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	if strings.TrimSpace(in.TargetDate) == "" {
		writeErr(w, 400, "targetDate is required")
		return
	}
	ts, err := h.repo.BatchPunt(parseIDs(in.TaskIDs), in.SourceDate, in.TargetDate)
	if err != nil {
		writeErr(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, ts)
}

// /api/tasks/batch/fail { taskIds }
func (h *Handler) BatchFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	var in struct {
		TaskIDs []string `json:"taskIds"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	ts, err := h.repo.BatchFail(parseIDs(in.TaskIDs))
	if err != nil {
		writeErr(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, ts)
}

// /api/tasks/batch/graveyard { taskIds }
func (h *Handler) BatchGraveyard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	var in struct {
		TaskIDs []string `json:"taskIds"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	ts, err := h.repo.BatchGraveyard(parseIDs(in.TaskIDs))
	if err != nil {
		writeErr(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, ts)
}
