package evictor

import "time"

// Strategy holds the memory limits and the monitoring cadence.
type Strategy struct {
	SoftLimitMB   float64
	HardLimitMB   float64
	CheckInterval time.Duration
}

// StrategyPatch is a partial Strategy update. Nil fields preserve the
// previous value.
type StrategyPatch struct {
	SoftLimitMB   *float64
	HardLimitMB   *float64
	CheckInterval *time.Duration
}

// normalized clamps a strategy into its valid range: limits are
// non-negative and the hard limit is never below the soft limit.
func (s Strategy) normalized() Strategy {
	if s.SoftLimitMB < 0 {
		s.SoftLimitMB = 0
	}
	if s.HardLimitMB < s.SoftLimitMB {
		s.HardLimitMB = s.SoftLimitMB
	}
	if s.CheckInterval <= 0 {
		s.CheckInterval = 30 * time.Second
	}
	return s
}

// merge returns a new Strategy with the patch applied and clamped.
func (s Strategy) merge(patch StrategyPatch) Strategy {
	next := s
	if patch.SoftLimitMB != nil {
		next.SoftLimitMB = *patch.SoftLimitMB
	}
	if patch.HardLimitMB != nil {
		next.HardLimitMB = *patch.HardLimitMB
	}
	if patch.CheckInterval != nil {
		next.CheckInterval = *patch.CheckInterval
	}
	return next.normalized()
}
