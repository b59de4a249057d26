package job

// transitions lists every permitted state change. A job is processed once:
// a failed job is never retried in place, a retry means a new upload.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether a job in status s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }
