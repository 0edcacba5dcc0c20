package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TaskStatus reports the progress of a previously accepted load job.
func (s *Server) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid task id")
		return
	}
	st, ok := s.queue.Status(id)
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
