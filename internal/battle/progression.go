// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mirefall Contributors

package battle

// ProgressionCurve supplies the experience thresholds for leveling.
// The curve arithmetic lives behind this interface the same way damage
// lives behind CombatFormula.
type ProgressionCurve interface {
	// XPNeeded returns the experience required to advance from level.
	XPNeeded(level int) int64
	// JobXPNeeded returns the job experience required to advance from
	// jobLevel.
	JobXPNeeded(jobLevel int) int64
}

// MaxLevel caps character progression.
const MaxLevel = 99

// DefaultCurve is a quadratic threshold curve.
type DefaultCurve struct{}

// XPNeeded implements ProgressionCurve.
func (DefaultCurve) XPNeeded(level int) int64 {
	return int64(level) * int64(level) * 50
}

// JobXPNeeded implements ProgressionCurve.
func (DefaultCurve) JobXPNeeded(jobLevel int) int64 {
	return int64(jobLevel) * int64(jobLevel) * 30
}
