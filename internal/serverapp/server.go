// Package serverapp assembles the HTTP surface: the tasks API, health
// probes, and the embedded static shell, wrapped in the middleware chain.
package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"lifeboard/internal/config"
	"lifeboard/internal/httpmw"
	"lifeboard/internal/store"
	staticfiles "lifeboard/static"
)

type Options struct {
	Config        *config.Config
	Repo          store.Repo // nil means a FileRepo under Config.Server.DataDir
	StaticDir     string
	UseDiskStatic bool
	Logger        *log.Logger
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if strings.TrimSpace(opts.StaticDir) == "" {
		opts.StaticDir = "static"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	repo := opts.Repo
	if repo == nil {
		fr, err := store.NewFileRepo(opts.Config.Server.DataDir)
		if err != nil {
			return nil, err
		}
		fr.WorkOnWeekends = opts.Config.Tasks.WorkOnWeekends
		repo = fr
	}

	mux := http.NewServeMux()

	tasks := store.NewHandler(repo)
	mux.HandleFunc("/api/tasks", tasks.TasksRoot)
	mux.HandleFunc("/api/tasks/batch/punt", tasks.BatchPunt)
	mux.HandleFunc("/api/tasks/batch/fail", tasks.BatchFail)
	mux.HandleFunc("/api/tasks/batch/graveyard", tasks.BatchGraveyard)
	mux.HandleFunc("/api/tasks/", tasks.TasksSub)

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(opts.Config); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "lifeboard",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := repo.List(store.ListFilter{}); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "lifeboard",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	var staticFS http.FileSystem = http.FS(staticfiles.EmbeddedFS())
	if opts.UseDiskStatic {
		staticFS = http.Dir(opts.StaticDir)
	}
	mux.Handle("/", spaHandler(staticFS))

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	), nil
}

// spaHandler serves the static tree, falling back to index.html for paths
// that don't name a file (client-side routes).
func spaHandler(root http.FileSystem) http.Handler {
	files := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			if f, err := root.Open(strings.TrimPrefix(r.URL.Path, "/")); err == nil {
				_ = f.Close()
				files.ServeHTTP(w, r)
				return
			}
		}
		r.URL.Path = "/"
		files.ServeHTTP(w, r)
	})
}

func UseDiskStaticByEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LIFEBOARD_DEV_STATIC"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
