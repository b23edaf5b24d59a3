package domain

// leaveTransitions is the adjacency map of the leave request lifecycle.
var leaveTransitions = map[LeaveStatus][]LeaveStatus{
	LeavePending:   {LeaveApproved, LeaveRejected, LeaveCancelled},
	LeaveApproved:  {LeaveCancelled},
	LeaveRejected:  nil,
	LeaveCancelled: nil,
}

// conflictTransitions is the adjacency map of the per-conflict suggestion
// lifecycle. Self loops on unresolved/suggested are regeneration.
var conflictTransitions = map[ConflictState][]ConflictState{
	ConflictUnresolved: {ConflictUnresolved, ConflictSuggested, ConflictSuperseded},
	ConflictSuggested:  {ConflictUnresolved, ConflictSuggested, ConflictAccepted, ConflictRejected, ConflictSuperseded},
	ConflictRejected:   {ConflictUnresolved, ConflictSuggested, ConflictSuperseded},
	ConflictAccepted:   {ConflictSuperseded},
	ConflictSuperseded: nil,
}

func CanTransitionLeave(from, to LeaveStatus) bool {
	for _, s := range leaveTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionConflict(from, to ConflictState) bool {
	for _, s := range conflictTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
