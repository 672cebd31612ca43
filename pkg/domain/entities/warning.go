package entities

// WarningKind classifies a recovered condition of a run
type WarningKind string

const (
	DegradedInputWarning    WarningKind = "DegradedInputWarning"
	PolicyConflictWarning   WarningKind = "PolicyConflictWarning"
	DataQualityWarning      WarningKind = "DataQualityWarning"
	FeasibleSolutionWarning WarningKind = "FeasibleSolutionWarning"
)

// maxWarningKeys caps how many affected keys a warning carries
const maxWarningKeys = 20

// Warning represents a recovered condition with enough detail to audit the run
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Source  string      `json:"source"`
	Message string      `json:"message"`
	Count   int         `json:"count,omitempty"`
	Keys    []string    `json:"keys,omitempty"`
}

// NewWarning creates a Warning, keeping at most the first 20 affected keys
func NewWarning(kind WarningKind, source, message string, keys ...string) Warning {
	w := Warning{Kind: kind, Source: source, Message: message, Count: len(keys)}
	if len(keys) > maxWarningKeys {
		keys = keys[:maxWarningKeys]
	}
	if len(keys) > 0 {
		w.Keys = append([]string(nil), keys...)
	}
	return w
}
