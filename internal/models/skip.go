package models

// SkipCode enumerates why a stage produced no value
type SkipCode string

const (
	SkipInsufficientData      SkipCode = "insufficient_data"
	SkipInsufficientVariation SkipCode = "insufficient_variation"
	SkipCollinearity          SkipCode = "collinearity"
	SkipNoSuspects            SkipCode = "no_suspects"
)

// SkipReason is the tagged "no result" outcome of a stage. It is a value,
// not an error: callers branch on it and carry on with the remaining stages.
type SkipReason struct {
	Code    SkipCode `json:"code" yaml:"code"`
	Message string   `json:"message" yaml:"message"`
}

// NewSkipReason creates a skip reason
func NewSkipReason(code SkipCode, message string) *SkipReason {
	return &SkipReason{Code: code, Message: message}
}

// String renders the skip reason for logs
func (s *SkipReason) String() string {
	if s == nil {
		return ""
	}
	return string(s.Code) + ": " + s.Message
}
