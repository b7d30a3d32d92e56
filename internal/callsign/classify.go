// Package callsign classifies callsigns by structural pattern.
package callsign

import "strings"

// Reason states why a callsign was classified as special.
type Reason int

const (
	// ReasonNone marks a regular callsign.
	ReasonNone Reason = iota
	// ReasonEvent marks an event station (DR prefix).
	ReasonEvent
	// ReasonClub marks a club station (D + letter + 0 district).
	ReasonClub
	// ReasonAnniversary marks an anniversary or commemorative callsign
	// (two or more consecutive digits after the prefix).
	ReasonAnniversary
)

// String returns the display label for a reason.
func (r Reason) String() string {
	switch r {
	case ReasonEvent:
		return "event"
	case ReasonClub:
		return "club"
	case ReasonAnniversary:
		return "anniversary"
	default:
		return ""
	}
}

// Classification is the result of classifying one callsign.
type Classification struct {
	Special bool
	Reason  Reason
}

// Classify decides whether a callsign belongs to a special station.
// Rules apply in order, first match wins:
//  1. a portable/mobile suffix ("/") is never special,
//  2. DR prefix marks an event station,
//  3. D + any letter + district 0 marks a club station,
//  4. two or more consecutive digits after the prefix mark an
//     anniversary callsign,
//  5. everything else is a regular callsign.
func Classify(call string) Classification {
	call = strings.ToUpper(strings.TrimSpace(call))
	if call == "" {
		return Classification{}
	}
	if strings.Contains(call, "/") {
		return Classification{}
	}
	if strings.HasPrefix(call, "DR") {
		return Classification{Special: true, Reason: ReasonEvent}
	}
	if isClubStation(call) {
		return Classification{Special: true, Reason: ReasonClub}
	}
	if hasConsecutiveDigits(call) {
		return Classification{Special: true, Reason: ReasonAnniversary}
	}
	return Classification{}
}

// isClubStation matches the German club pattern D + letter + 0 (DL0, DA0, DF0).
func isClubStation(call string) bool {
	if len(call) < 3 || call[0] != 'D' {
		return false
	}
	return isLetter(call[1]) && call[2] == '0'
}

// hasConsecutiveDigits reports whether the callsign contains a run of two
// or more digits anywhere after its leading prefix letters.
func hasConsecutiveDigits(call string) bool {
	start := 0
	for start < len(call) && isLetter(call[start]) {
		start++
	}
	run := 0
	for i := start; i < len(call); i++ {
		if isDigit(call[i]) {
			run++
			if run >= 2 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
