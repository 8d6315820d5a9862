package mirror

import "strings"

const (
	StateReasonNotPlanned = "not_planned"
	StateReasonCompleted  = "completed"
	StateReasonReopened   = "reopened"

	LockReasonOffTopic  = "off_topic"
	LockReasonTooHeated = "too_heated"
	LockReasonResolved  = "resolved"
	LockReasonSpam      = "spam"
	LockReasonOther     = "other"
)

var (
	stateReasons = map[string]bool{
		StateReasonNotPlanned: true,
		StateReasonCompleted:  true,
		StateReasonReopened:   true,
	}
	lockReasons = map[string]bool{
		LockReasonOffTopic:  true,
		LockReasonTooHeated: true,
		LockReasonResolved:  true,
		LockReasonSpam:      true,
		LockReasonOther:     true,
	}
)

// NormalizeStateReason maps an upstream state_reason onto the stored enum. Blank and
// values outside the enum (e.g. "duplicate") are nil.
func NormalizeStateReason(raw string) *string {
	return normalizeEnum(raw, stateReasons)
}

// NormalizeLockReason maps active_lock_reason; GitHub spells one value "too heated".
func NormalizeLockReason(raw string) *string {
	return normalizeEnum(raw, lockReasons)
}

func normalizeEnum(raw string, allowed map[string]bool) *string {
	value := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	if !allowed[value] {
		return nil
	}
	return &value
}
