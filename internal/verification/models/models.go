// Package models defines the verification record and its state machine.
package models

import (
	"time"

	id "veridoc/pkg/domain"
)

// State of a verification attempt's lifecycle.
type State string

const (
	StateSubmitted   State = "SUBMITTED"
	StateExtracting  State = "EXTRACTING"
	StateScoring     State = "SCORING"
	StateDecided     State = "DECIDED"
	StateUnderReview State = "UNDER_REVIEW"
	StateOverridden  State = "OVERRIDDEN"
	StateFailed      State = "FAILED"
)

// Outcome of a decided verification.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeFlagged  Outcome = "FLAGGED"
)

// ParseState validates a stored state string.
func ParseState(s string) (State, bool) {
	state := State(s)
	switch state {
	case StateSubmitted, StateExtracting, StateScoring, StateDecided,
		StateUnderReview, StateOverridden, StateFailed:
		return state, true
	}
	return "", false
}

// transitions is the exhaustive set of legal state changes. Anything not
// listed is rejected, which is what makes the lifecycle append-only: a
// record never moves back toward an earlier pipeline stage.
var transitions = map[State][]State{
	StateSubmitted:   {StateExtracting, StateFailed},
	StateExtracting:  {StateScoring, StateFailed},
	StateScoring:     {StateDecided, StateFailed},
	StateDecided:     {StateUnderReview, StateFailed},
	StateUnderReview: {StateOverridden, StateDecided, StateFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the record can never change state again.
// DECIDED is deliberately not terminal: a decided record can still enter
// review, and a fresh verification can be submitted for the same document.
func (s State) Terminal() bool {
	return s == StateOverridden || s == StateFailed
}

// InFlight reports whether the record blocks a new submission for its
// document. A decided record does not: re-verification after a decision is
// allowed.
func (s State) InFlight() bool {
	switch s {
	case StateSubmitted, StateExtracting, StateScoring, StateUnderReview:
		return true
	}
	return false
}

// Decide maps a fraud score to an outcome against the configured
// threshold. Scores at or above the threshold are flagged.
func Decide(score, threshold float64) Outcome {
	if score >= threshold {
		return OutcomeFlagged
	}
	return OutcomeApproved
}

// Record is a single verification attempt for a document.
type Record struct {
	ID          id.VerificationID
	DocumentID  id.DocumentID
	RequesterID id.UserID
	State       State
	// Outcome is set once the record reaches DECIDED or OVERRIDDEN.
	Outcome Outcome
	// Score is the fraud likelihood in [0,1]; nil until scoring completes.
	Score    *float64
	Evidence map[string]string
	// DecisionReason explains failures, review requests, and overrides.
	DecisionReason string
	// Attempt numbers retries of the same document, starting at 1.
	Attempt   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so store reads never alias live state.
func (r Record) Clone() Record {
	out := r
	if r.Score != nil {
		score := *r.Score
		out.Score = &score
	}
	if r.Evidence != nil {
		out.Evidence = make(map[string]string, len(r.Evidence))
		for k, v := range r.Evidence {
			out.Evidence[k] = v
		}
	}
	return out
}
