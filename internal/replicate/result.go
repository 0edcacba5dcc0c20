package replicate

// Outcome says whether a processor wrote its primary row.
type Outcome string

const (
	Written Outcome = "written"
	Skipped Outcome = "skipped"
)

// Skip reasons. Stale means the mirror was already at least as fresh;
// nothing-to-do means the payload is a documented no-op shape (a renamed
// file without a sha).
const (
	ReasonStale       = "stale data"
	ReasonNothingToDo = "nothing to do"
)

// Result is the non-error verdict of one processor call. Skips are normal
// operation, so they ride the result rather than the error.
type Result struct {
	Outcome Outcome
	Reason  string
}

// Wrote reports whether the primary row was written.
func (r Result) Wrote() bool { return r.Outcome == Written }

// Stale reports whether the write lost to an equal-or-newer stored row.
func (r Result) Stale() bool { return r.Outcome == Skipped && r.Reason == ReasonStale }

func wrote() Result { return Result{Outcome: Written} }

func skipStale() Result { return Result{Outcome: Skipped, Reason: ReasonStale} }

func skipNothing() Result { return Result{Outcome: Skipped, Reason: ReasonNothingToDo} }
