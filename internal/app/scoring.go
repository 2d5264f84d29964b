package app

import (
	"math"
	"time"
)

// Scoring constants for the multiplayer loop: a flat base per correct answer
// plus a speed bonus decaying linearly to zero over a 15-second window.
const (
	BasePoints    = 10
	SpeedBonusMax = 5
	SpeedWindow   = 15 * time.Second
)

// Award returns the points for a correct answer submitted elapsed after the
// question became current. Late answers keep the base; the bonus floors at
// zero rather than going negative.
func Award(elapsed time.Duration) int {
	return BasePoints + SpeedBonus(elapsed)
}

// SpeedBonus computes max(0, round(SpeedBonusMax * (1 - elapsed/window))).
func SpeedBonus(elapsed time.Duration) int {
	frac := 1 - float64(elapsed.Milliseconds())/float64(SpeedWindow.Milliseconds())
	bonus := int(math.Round(SpeedBonusMax * frac))
	if bonus < 0 {
		return 0
	}
	if bonus > SpeedBonusMax {
		return SpeedBonusMax
	}
	return bonus
}
