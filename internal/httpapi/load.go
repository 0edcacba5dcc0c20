package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erauner12/hubmirror/internal/auth"
	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/scan"
	"github.com/erauner12/hubmirror/internal/store"
)

// acceptedResponse is the body of an async 202.
type acceptedResponse struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

// dispatch runs a load job. Inline execution returns the job's verdict on
// this response; the default path queues the job and points the caller at
// its status resource.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, build func(sy *scan.Syncer) jobs.Job) {
	ctx := r.Context()

	if r.URL.Query().Get("inline") == "true" {
		err := build(s.inline).Run(ctx)
		var rle *github.RateLimitedError
		var nfe *github.NotFoundError
		switch {
		case err == nil:
			writeMessage(w, http.StatusOK, "success")
		case errors.Is(err, scan.ErrAlreadyRunning):
			writeMessage(w, http.StatusOK, "already running")
		case errors.As(err, &nfe), errors.Is(err, store.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "not found")
		case errors.As(err, &rle):
			writeRateLimited(w, rle)
		default:
			s.log.Error().Err(err).Str("path", r.URL.Path).Msg("inline load failed")
			writeMessage(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	id, err := s.queue.Enqueue(ctx, build(s.async))
	if err != nil {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("enqueue load failed")
		writeMessage(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	loc := "/tasks/status/" + id.String()
	w.Header().Set("Location", loc)
	writeJSON(w, http.StatusAccepted, acceptedResponse{
		ID:       id.String(),
		Message:  "accepted",
		Location: loc,
	})
}

func repoScope(r *http.Request) (requestor, owner, name string) {
	return auth.Requestor(r.Context()), chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
}

// numberParam parses a positive integer URL segment. Zero means malformed.
func numberParam(r *http.Request, key string) int {
	n, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func children(r *http.Request) bool {
	return r.URL.Query().Get("children") == "true"
}

func (s *Server) LoadRepo(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	kids := children(r)
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.RepoSync(requestor, owner, name, kids)
	})
}

func (s *Server) LoadIssues(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	state := r.URL.Query().Get("state")
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.IssuesScan(requestor, owner, name, state)
	})
}

func (s *Server) LoadIssue(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	number := numberParam(r, "number")
	if number == 0 {
		writeMessage(w, http.StatusBadRequest, "invalid issue number")
		return
	}
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.IssueSync(requestor, owner, name, number)
	})
}

func (s *Server) LoadLabels(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.LabelsScan(requestor, owner, name)
	})
}

func (s *Server) LoadLabel(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	label := chi.URLParam(r, "name")
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.LabelSync(requestor, owner, name, label)
	})
}

func (s *Server) LoadMilestones(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	state := r.URL.Query().Get("state")
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.MilestonesScan(requestor, owner, name, state)
	})
}

func (s *Server) LoadMilestone(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	number := numberParam(r, "number")
	if number == 0 {
		writeMessage(w, http.StatusBadRequest, "invalid milestone number")
		return
	}
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.MilestoneSync(requestor, owner, name, number)
	})
}

func (s *Server) LoadHooks(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.HooksScan(requestor, owner, name)
	})
}

func (s *Server) LoadHook(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	hookID, err := strconv.ParseInt(chi.URLParam(r, "hookID"), 10, 64)
	if err != nil || hookID < 1 {
		writeMessage(w, http.StatusBadRequest, "invalid hook id")
		return
	}
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.HookSync(requestor, owner, name, hookID)
	})
}

func (s *Server) LoadPulls(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	state := r.URL.Query().Get("state")
	if state == "" {
		state = "open"
	}
	switch state {
	case "open", "closed", "all":
	default:
		writeMessage(w, http.StatusBadRequest, "state must be open, closed or all")
		return
	}
	kids := children(r)
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.PullsScan(requestor, owner, name, state, kids)
	})
}

func (s *Server) LoadPull(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	number := numberParam(r, "number")
	if number == 0 {
		writeMessage(w, http.StatusBadRequest, "invalid pull request number")
		return
	}
	kids := children(r)
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.PullSync(requestor, owner, name, number, kids)
	})
}

func (s *Server) LoadPullFiles(w http.ResponseWriter, r *http.Request) {
	requestor, owner, name := repoScope(r)
	number := numberParam(r, "number")
	if number == 0 {
		writeMessage(w, http.StatusBadRequest, "invalid pull request number")
		return
	}
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.PullFilesScan(requestor, owner, name, number)
	})
}

func (s *Server) LoadOwnRepos(w http.ResponseWriter, r *http.Request) {
	requestor := auth.Requestor(r.Context())
	typ := r.URL.Query().Get("type")
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.UserReposScan(requestor, requestor, typ)
	})
}

func (s *Server) LoadUserRepos(w http.ResponseWriter, r *http.Request) {
	requestor := auth.Requestor(r.Context())
	username := chi.URLParam(r, "username")
	typ := r.URL.Query().Get("type")
	s.dispatch(w, r, func(sy *scan.Syncer) jobs.Job {
		return sy.UserReposScan(requestor, username, typ)
	})
}
