package approval

import "plantops-backend/internal/model"

// transition is one legal status change and the audit action it records.
type transition struct {
	from string
	to   string
	log  string
}

var (
	approveTransition = transition{model.ApprovalPending, model.ApprovalApproved, model.LogApproved}
	rejectTransition  = transition{model.ApprovalPending, model.ApprovalRejected, model.LogRejected}
	returnTransition  = transition{model.ApprovalPending, model.ApprovalReturned, model.LogReturned}
	cancelTransition  = transition{model.ApprovalPending, model.ApprovalCancelled, model.LogCancelled}
	voidTransition    = transition{model.ApprovalApproved, model.ApprovalVoid, model.LogVoided}
	expireTransition  = transition{model.ApprovalPending, model.ApprovalExpired, model.LogExpired}
)

var legal = map[string]map[string]bool{}

func init() {
	for _, t := range []transition{approveTransition, rejectTransition, returnTransition, cancelTransition, voidTransition, expireTransition} {
		if legal[t.from] == nil {
			legal[t.from] = map[string]bool{}
		}
		legal[t.from][t.to] = true
	}
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to string) bool {
	return legal[from][to]
}

// IsTerminal reports whether no further status change is possible.
func IsTerminal(status string) bool {
	return len(legal[status]) == 0
}

// Priorities accepted on create.
var priorities = map[string]bool{
	"LOW":    true,
	"NORMAL": true,
	"HIGH":   true,
	"URGENT": true,
}
