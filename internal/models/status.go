package models

// StudentStatus tracks a student's position in the write-feedback-revise cycle.
type StudentStatus string

const (
	// StatusActive indicates the student has joined and is still writing.
	StatusActive StudentStatus = "active"
	// StatusReadyForFeedback indicates work has been submitted and awaits generation.
	StatusReadyForFeedback StudentStatus = "ready_for_feedback"
	// StatusGenerating indicates an AI feedback call is in flight for the student.
	StatusGenerating StudentStatus = "generating"
	// StatusSubmitted indicates generated feedback is attached and awaits teacher review.
	StatusSubmitted StudentStatus = "submitted"
	// StatusFeedbackReady indicates the teacher released feedback back to the student.
	StatusFeedbackReady StudentStatus = "feedback_ready"
	// StatusRevising indicates the student picked a next step and is reworking the piece.
	StatusRevising StudentStatus = "revising"
	// StatusCompleted is terminal; late or duplicate transitions are ignored.
	StatusCompleted StudentStatus = "completed"
)

// CanTransitionTo reports whether moving from the current status to next is a
// legal state-machine edge. The switch is exhaustive on purpose: adding a
// status without updating this table is a compile-time/test-time error, not a
// silent runtime gap.
func (s StudentStatus) CanTransitionTo(next StudentStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusReadyForFeedback
	case StatusReadyForFeedback:
		return next == StatusGenerating || next == StatusReadyForFeedback
	case StatusGenerating:
		return next == StatusSubmitted || next == StatusReadyForFeedback
	case StatusSubmitted:
		return next == StatusFeedbackReady || next == StatusCompleted
	case StatusFeedbackReady:
		return next == StatusRevising || next == StatusCompleted
	case StatusRevising:
		return next == StatusReadyForFeedback
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// Terminal reports whether the status absorbs all further transitions.
func (s StudentStatus) Terminal() bool {
	return s == StatusCompleted
}

// Valid reports whether the value is a member of the status enumeration.
func (s StudentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusReadyForFeedback, StatusGenerating,
		StatusSubmitted, StatusFeedbackReady, StatusRevising, StatusCompleted:
		return true
	default:
		return false
	}
}

// Label returns the human-readable dashboard label for the status.
func (s StudentStatus) Label() string {
	switch s {
	case StatusActive:
		return "Writing"
	case StatusReadyForFeedback:
		return "Ready for feedback"
	case StatusGenerating:
		return "Generating feedback"
	case StatusSubmitted:
		return "Awaiting review"
	case StatusFeedbackReady:
		return "Feedback released"
	case StatusRevising:
		return "Revising"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Tone returns the presentation tone consumers map onto badge styling.
func (s StudentStatus) Tone() string {
	switch s {
	case StatusActive:
		return "neutral"
	case StatusReadyForFeedback:
		return "attention"
	case StatusGenerating:
		return "busy"
	case StatusSubmitted:
		return "attention"
	case StatusFeedbackReady:
		return "info"
	case StatusRevising:
		return "neutral"
	case StatusCompleted:
		return "success"
	default:
		return "neutral"
	}
}
