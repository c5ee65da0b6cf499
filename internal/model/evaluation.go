package model

import "time"

// Evaluation is the working record of one session's evaluation during a sweep.
// Pipeline steps read and fill it in order; it is discarded after the sweep.
type Evaluation struct {
	// SessionID is the browser-assigned identifier of the tab.
	SessionID string

	// SweepID identifies the sweep this evaluation belongs to.
	SweepID string

	// URL is the navigation target read from the session.
	URL string

	// Features is set once extraction succeeds.
	Features *FeatureVector

	// Verdict is valid only when Classified is true.
	Verdict Verdict

	// Score is the positive-class score from the classifier.
	Score float64

	// Classified reports whether the classification step ran.
	Classified bool

	// Skipped is set when a step ended the evaluation early without failing.
	Skipped bool

	// SkipReason describes why the evaluation was skipped.
	SkipReason string

	// Err holds the failure that ended the evaluation, if any.
	Err error

	// Closed reports whether the session was closed by the dispatcher.
	Closed bool

	// PerformedSteps lists the names of the steps that ran.
	PerformedSteps []string

	// StartedAt and FinishedAt bound the evaluation.
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewEvaluation creates an Evaluation for the given session.
func NewEvaluation(sessionID, sweepID string) *Evaluation {
	return &Evaluation{
		SessionID:      sessionID,
		SweepID:        sweepID,
		PerformedSteps: make([]string, 0),
		StartedAt:      time.Now(),
	}
}

// Skip marks the evaluation as skipped.
func (e *Evaluation) Skip(reason string) {
	e.Skipped = true
	e.SkipReason = reason
}

// Outcome summarizes the evaluation as "phishing", "benign", "skipped" or "failed".
func (e *Evaluation) Outcome() string {
	switch {
	case e.Err != nil:
		return "failed"
	case e.Skipped:
		return "skipped"
	case e.Classified:
		return e.Verdict.String()
	default:
		return "incomplete"
	}
}

// Record converts a classified evaluation into a VerdictRecord.
func (e *Evaluation) Record(urlHash string) VerdictRecord {
	rec := VerdictRecord{
		Timestamp: e.FinishedAt,
		URL:       e.URL,
		URLHash:   urlHash,
		Verdict:   e.Verdict,
		Score:     e.Score,
		SessionID: e.SessionID,
		SweepID:   e.SweepID,
		Closed:    e.Closed,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if e.Features != nil {
		rec.Features = *e.Features
	}
	return rec
}
