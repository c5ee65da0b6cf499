package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Verdict is the binary outcome of classifying one URL.
type Verdict int

const (
	// VerdictBenign means the page does not look like phishing.
	VerdictBenign Verdict = iota

	// VerdictPhishing means the classifier flagged the page.
	VerdictPhishing
)

// VerdictFromLabel maps a classifier label to a Verdict: 1 is phishing,
// anything else is benign.
func VerdictFromLabel(label int) Verdict {
	if label == 1 {
		return VerdictPhishing
	}
	return VerdictBenign
}

// ParseVerdict parses the string form produced by String.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "benign":
		return VerdictBenign, nil
	case "phishing":
		return VerdictPhishing, nil
	default:
		return VerdictBenign, fmt.Errorf("unknown verdict %q", s)
	}
}

// String returns "benign" or "phishing".
func (v Verdict) String() string {
	if v == VerdictPhishing {
		return "phishing"
	}
	return "benign"
}

// IsPhishing reports whether the verdict is positive.
func (v Verdict) IsPhishing() bool {
	return v == VerdictPhishing
}

// MarshalJSON encodes the verdict as its string form.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes the string form of a verdict.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVerdict(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VerdictRecord is the persisted form of a verdict.
type VerdictRecord struct {
	// ID is the database identifier; zero until stored.
	ID int64 `json:"id,omitempty"`

	// Timestamp is when the verdict was produced.
	Timestamp time.Time `json:"timestamp"`

	// URL is the evaluated navigation target.
	URL string `json:"url"`

	// URLHash is the hex SHA3-256 digest of URL.
	URLHash string `json:"url_hash"`

	// Verdict is the classifier outcome.
	Verdict Verdict `json:"verdict"`

	// Score is the positive-class score reported by the model.
	Score float64 `json:"score"`

	// Features is the vector the verdict was computed from.
	Features FeatureVector `json:"features"`

	// SessionID identifies the browser tab the URL came from.
	SessionID string `json:"session_id,omitempty"`

	// SweepID identifies the poller sweep.
	SweepID string `json:"sweep_id,omitempty"`

	// Closed reports whether the tab was closed after a phishing verdict.
	Closed bool `json:"closed"`
}
