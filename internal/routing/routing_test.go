package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var defaults = Thresholds{
	DigestLow:  0.5,
	DigestHigh: 0.69,
	Notify:     0.7,
}

func TestRouteNotify(t *testing.T) {
	assert.Equal(t, Notify, Route(0.7, true, defaults))
	assert.Equal(t, Notify, Route(0.85, true, defaults))
	assert.Equal(t, Notify, Route(1.0, true, defaults))

	// Notify does not depend on the digest toggle
	assert.Equal(t, Notify, Route(0.9, false, defaults))
}

func TestRouteDigestBand(t *testing.T) {
	assert.Equal(t, Digest, Route(0.5, true, defaults))
	assert.Equal(t, Digest, Route(0.6, true, defaults))
	assert.Equal(t, Digest, Route(0.69, true, defaults))
}

func TestRouteIgnore(t *testing.T) {
	assert.Equal(t, Ignore, Route(0.0, true, defaults))
	assert.Equal(t, Ignore, Route(0.49, true, defaults))
	assert.Equal(t, Ignore, Route(0.699, true, defaults))
}

func TestRouteDigestDisabled(t *testing.T) {
	assert.Equal(t, Ignore, Route(0.6, false, defaults))
	assert.Equal(t, Notify, Route(0.7, false, defaults))
}

func TestRouteNotifyWinsOverlappingBand(t *testing.T) {
	overlapping := Thresholds{DigestLow: 0.5, DigestHigh: 0.9, Notify: 0.7}

	assert.Equal(t, Notify, Route(0.8, true, overlapping))
	assert.Equal(t, Digest, Route(0.65, true, overlapping))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "notify", Notify.String())
	assert.Equal(t, "digest", Digest.String())
	assert.Equal(t, "ignore", Ignore.String())
}
