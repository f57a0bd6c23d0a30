package predictor

import "time"

// Strategy controls how many predictions are served and when speculative
// loading may start.
type Strategy struct {
	MaxPrefetch    int
	MinProbability float64
	PrefetchDelay  time.Duration
}

// StrategyPatch is a partial Strategy update. Nil fields preserve the
// previous value.
type StrategyPatch struct {
	MaxPrefetch    *int
	MinProbability *float64
	PrefetchDelay  *time.Duration
}

// normalized clamps a strategy into its valid range.
func (s Strategy) normalized() Strategy {
	if s.MaxPrefetch < 1 {
		s.MaxPrefetch = 1
	}
	if s.MinProbability < 0 {
		s.MinProbability = 0
	}
	if s.MinProbability > 1 {
		s.MinProbability = 1
	}
	if s.PrefetchDelay < 0 {
		s.PrefetchDelay = 0
	}
	return s
}

// merge returns a new Strategy with the patch applied and clamped.
func (s Strategy) merge(patch StrategyPatch) Strategy {
	next := s
	if patch.MaxPrefetch != nil {
		next.MaxPrefetch = *patch.MaxPrefetch
	}
	if patch.MinProbability != nil {
		next.MinProbability = *patch.MinProbability
	}
	if patch.PrefetchDelay != nil {
		next.PrefetchDelay = *patch.PrefetchDelay
	}
	return next.normalized()
}
