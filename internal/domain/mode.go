package domain

import "strings"

// Mode is the gateway operating context.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// ParseMode defaults to test for anything but "live".
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeLive)) {
		return ModeLive
	}
	return ModeTest
}

// Liveness is the live flag carried by a gateway object, when there is one.
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessLive
	LivenessTest
)

// LivenessOf converts an optional live flag.
func LivenessOf(live *bool) Liveness {
	switch {
	case live == nil:
		return LivenessUnknown
	case *live:
		return LivenessLive
	default:
		return LivenessTest
	}
}

func (l Liveness) String() string {
	switch l {
	case LivenessLive:
		return "live"
	case LivenessTest:
		return "test"
	default:
		return "unknown"
	}
}
