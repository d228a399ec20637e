package domain

import (
	"fmt"
	"strings"
)

// Tier is the three-level risk classification shown to viewers. TierUnknown is
// reserved for failed predictions and is never produced by Classify.
type Tier int

const (
	TierUnknown Tier = iota
	TierSafe
	TierCaution
	TierDanger
)

// Classification thresholds in seconds of peak wave period.
const (
	CautionThreshold = 14.0
	DangerThreshold  = 17.0
)

// Classify maps a wave period to a tier. It is total: NaN compares false on
// both thresholds and classifies as Safe.
func Classify(periodSeconds float64) Tier {
	switch {
	case periodSeconds > DangerThreshold:
		return TierDanger
	case periodSeconds > CautionThreshold:
		return TierCaution
	default:
		return TierSafe
	}
}

func (t Tier) String() string {
	switch t {
	case TierSafe:
		return "Safe"
	case TierCaution:
		return "Caution"
	case TierDanger:
		return "Danger"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the tier by name so JSON snapshots read "Danger" rather than 3.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts tier names case-insensitively.
func (t *Tier) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "safe":
		*t = TierSafe
	case "caution":
		*t = TierCaution
	case "danger":
		*t = TierDanger
	case "unknown", "":
		*t = TierUnknown
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}
