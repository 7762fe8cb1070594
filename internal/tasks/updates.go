package tasks

// State is a step of an authentication workflow.
type State int

const (
	Start State = iota
	CodeExchanged
	ProfileFetched
	UserLoaded
	TokensRefreshed
	IdentityResolved
	SessionIssued
	Failed
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case CodeExchanged:
		return "code_exchanged"
	case ProfileFetched:
		return "profile_fetched"
	case UserLoaded:
		return "user_loaded"
	case TokensRefreshed:
		return "tokens_refreshed"
	case IdentityResolved:
		return "identity_resolved"
	case SessionIssued:
		return "session_issued"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// ProgressUpdate reports that a workflow reached State.
type ProgressUpdate struct {
	State   State
	Step    int
	Total   int
	Message string
	Err     error
}

// sendProgress sends an update without blocking.
//
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(ch chan<- ProgressUpdate, update ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}
