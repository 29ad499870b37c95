package api

import (
	"context"
	"net/http"

	"fibermig/internal/progress"
)

type taskAccepted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status_url"`
}

func accepted(w http.ResponseWriter, t *progress.Task) {
	writeJSON(w, http.StatusAccepted, taskAccepted{TaskID: t.ID(), Status: "/v1/tasks/" + t.ID()})
}

// RefreshWaveProgressHandler starts a progress refresh for one wave.
func (s *Server) RefreshWaveProgressHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Store.GetWave(r.Context(), id); err != nil {
		s.writeError(w, r, "Refresh wave progress failed", err)
		return
	}
	accepted(w, s.startRefresh(id))
}

// RefreshAllProgressHandler starts a refresh of every wave. Each wave is
// refreshed independently; the task result lists one result per wave.
func (s *Server) RefreshAllProgressHandler(w http.ResponseWriter, r *http.Request) {
	t := s.Tasks.Start("wave.progress.all", func(ctx context.Context) (any, error) {
		return s.Progress.RefreshEverything(ctx)
	})
	accepted(w, t)
}

func (s *Server) TaskHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Tasks.Get(r.PathValue("id"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Task not found", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, t.Info())
}
