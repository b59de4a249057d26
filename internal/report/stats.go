// Package report accumulates per-job classification counts and renders the
// rejection report stored alongside rejected documents.
package report

import "nfesorter/internal/nfe"

// Stats is the final count of documents per category for one job.
type Stats struct {
	Approved    int `json:"aprovados"`
	Contingency int `json:"contingencia"`
	Rejected    int `json:"rejeitados"`
}

// Total is the number of classified documents.
func (s Stats) Total() int { return s.Approved + s.Contingency + s.Rejected }

// Accumulator counts classified documents. It lives for a single job run
// and is not safe for concurrent use.
type Accumulator struct {
	stats Stats
}

// Increment bumps the counter of the category's bucket. Malformed
// documents count as rejected.
func (a *Accumulator) Increment(category nfe.Category) {
	switch category.Counted() {
	case nfe.CategoryApproved:
		a.stats.Approved++
	case nfe.CategoryContingency:
		a.stats.Contingency++
	case nfe.CategoryRejected:
		a.stats.Rejected++
	}
}

// Snapshot returns the current counts.
func (a *Accumulator) Snapshot() Stats { return a.stats }
