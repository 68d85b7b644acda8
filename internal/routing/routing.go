// Package routing maps a clamped importance score to a triage decision.
package routing

// Decision is what happens to a scored message.
type Decision int

const (
	// Ignore drops the message silently.
	Ignore Decision = iota
	// Digest defers the message into the next batch summary.
	Digest
	// Notify alerts the user immediately.
	Notify
)

func (d Decision) String() string {
	switch d {
	case Notify:
		return "notify"
	case Digest:
		return "digest"
	default:
		return "ignore"
	}
}

// Thresholds are the configured routing boundaries. They are independently
// configured and not assumed ordered.
type Thresholds struct {
	DigestLow  float64
	DigestHigh float64
	Notify     float64
}

// Route decides how a scored message is handled. Notify is checked first, so
// a digest band reaching past the notify threshold is effectively clamped
// below it. All boundaries are inclusive.
func Route(score float64, digestEnabled bool, t Thresholds) Decision {
	if score >= t.Notify {
		return Notify
	}
	if digestEnabled && score >= t.DigestLow && score <= t.DigestHigh {
		return Digest
	}
	return Ignore
}
