package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/metrics"
	"github.com/erauner12/hubmirror/internal/model"
	"github.com/erauner12/hubmirror/internal/payload"
	"github.com/erauner12/hubmirror/internal/replicate"
	"github.com/erauner12/hubmirror/internal/store"
)

// inlineFileLimit is the largest changed-file count the intake will
// replace synchronously; anything bigger goes through a paginated scan.
const inlineFileLimit = 100

// Webhook receives one push notification. The event name selects the
// processor; the designated subobject is extracted and replicated with
// via=webhook at the delivery instant. Stale deliveries are a successful
// no-op, so upstream retries and reorderings never see errors.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get("X-Github-Event")
	if event == "" {
		event = chi.URLParam(r, "event")
	}
	metrics.WebhookDeliveries.WithLabelValues(event).Inc()

	if event == "ping" {
		writeMessage(w, http.StatusOK, "pong")
		return
	}

	var body payload.Object
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	var subKey string
	switch event {
	case "issues":
		subKey = "issue"
	case "pull_request":
		subKey = "pull_request"
	case "repository":
		subKey = "repository"
	default:
		writeMessage(w, http.StatusBadRequest, "unsupported event "+event)
		return
	}

	obj, ok := body.Sub(subKey)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "payload missing "+subKey)
		return
	}

	ctx := r.Context()
	fetchedAt := s.now().UTC()
	opt := replicate.Options{Via: model.ViaWebhook, FetchedAt: fetchedAt}

	var res replicate.Result
	var pr *model.PullRequest
	err := s.inTx(ctx, func(tx store.Tx) error {
		// The event's repository envelope, when present, lands first and
		// becomes the repo hint for entities that carry no repo of their
		// own.
		if event != "repository" {
			if envelope, ok := body.Sub("repository"); ok {
				repo, _, err := replicate.Repository(ctx, tx, envelope, opt)
				if err != nil {
					return err
				}
				opt.RepoID = repo.ID
			}
		}

		var err error
		switch event {
		case "issues":
			_, res, err = replicate.Issue(ctx, tx, obj, opt)
		case "pull_request":
			pr, res, err = replicate.PullRequest(ctx, tx, obj, opt)
		case "repository":
			_, res, err = replicate.Repository(ctx, tx, obj, opt)
		}
		return err
	})
	if err != nil {
		var mde *replicate.MissingDataError
		switch {
		case errors.As(err, &mde):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error().Err(err).Str("event", event).Msg("webhook replication failed")
			writeMessage(w, http.StatusInternalServerError, "replication failed")
		}
		return
	}

	if res.Wrote() {
		metrics.ReplicationWrites.WithLabelValues(string(model.ViaWebhook)).Inc()
	} else {
		metrics.ReplicationSkips.WithLabelValues(string(model.ViaWebhook)).Inc()
	}
	if res.Stale() {
		writeMessage(w, http.StatusOK, "stale data")
		return
	}

	if event == "pull_request" && pr != nil {
		if err := s.refreshPullFiles(ctx, body, obj, pr); err != nil {
			var rle *github.RateLimitedError
			if errors.As(err, &rle) {
				writeRateLimited(w, rle)
				return
			}
			s.log.Error().Err(err).Int64("pull", pr.ID).Msg("pull request file refresh failed")
			writeMessage(w, http.StatusInternalServerError, "file replication failed")
			return
		}
	}

	writeMessage(w, http.StatusOK, "success")
}

// refreshPullFiles converges the file set after a pull request write.
// Small file sets are replaced synchronously so the mirror is consistent
// when the delivery is acknowledged; large ones spawn a paginated scan.
func (s *Server) refreshPullFiles(ctx context.Context, body, obj payload.Object, pr *model.PullRequest) error {
	owner, name, ok := webhookRepoFullName(body, obj)
	if !ok {
		s.log.Warn().Int64("pull", pr.ID).Msg("pull request event without a resolvable repo, skipping files")
		return nil
	}
	number, ok := obj.Int("number")
	if !ok {
		return nil
	}

	if changed, ok := obj.Int("changed_files"); ok && changed < inlineFileLimit {
		return s.inline.ReplacePullFiles(ctx, "", pr.ID, owner, name, number)
	}
	_, err := s.queue.Enqueue(ctx, s.async.PullFilesScan("", owner, name, number))
	return err
}

// webhookRepoFullName resolves owner/name for a pull request event, from
// the event envelope first and the base branch second.
func webhookRepoFullName(body, obj payload.Object) (owner, name string, ok bool) {
	if envelope, found := body.Sub("repository"); found {
		if full, found := envelope.String("full_name"); found {
			if o, n, split := splitFullName(full); split {
				return o, n, true
			}
		}
	}
	if base, found := obj.Sub("base"); found {
		if repo, found := base.Sub("repo"); found {
			if full, found := repo.String("full_name"); found {
				return splitFullName(full)
			}
		}
	}
	return "", "", false
}

func splitFullName(full string) (owner, name string, ok bool) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// inTx runs fn in a unit of work and commits when it succeeds.
func (s *Server) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
