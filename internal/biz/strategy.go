package biz

import (
	"strings"

	"ProxyLane/internal/model"
)

// Strategy is a selection policy applied to the available set of proxies.
type Strategy int

// Supported strategies.
const (
	StrategyRoundRobin Strategy = iota
	StrategyRandom
	StrategyLeastUsed
	StrategyWeighted
	StrategyLatency
	StrategyFailover
)

// minSelectionWeight keeps proxies without any reported attempts selectable under the
// weighted strategy.
const minSelectionWeight = 1.0

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyRoundRobin:
		return "round_robin"
	case StrategyRandom:
		return "random"
	case StrategyLeastUsed:
		return "least_used"
	case StrategyWeighted:
		return "weighted"
	case StrategyLatency:
		return "latency"
	case StrategyFailover:
		return "failover"
	default:
		return "round_robin"
	}
}

// ParseStrategy resolves a strategy name. Unknown names yield round robin and ok=false.
func ParseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "round_robin":
		return StrategyRoundRobin, true
	case "random":
		return StrategyRandom, true
	case "least_used":
		return StrategyLeastUsed, true
	case "weighted":
		return StrategyWeighted, true
	case "latency":
		return StrategyLatency, true
	case "failover":
		return StrategyFailover, true
	default:
		return StrategyRoundRobin, false
	}
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{
		StrategyRoundRobin,
		StrategyRandom,
		StrategyLeastUsed,
		StrategyWeighted,
		StrategyLatency,
		StrategyFailover,
	}
}

// pick returns the index into avail chosen by strategy. avail is never empty and the
// caller holds the scheduler lock.
func (s *Scheduler) pick(strategy Strategy, avail []*model.ProxyRecord) int {
	switch strategy {
	case StrategyRoundRobin:
		return s.pickRoundRobin(avail)
	case StrategyRandom:
		return s.rng.Intn(len(avail))
	case StrategyLeastUsed:
		return pickLeastUsed(avail)
	case StrategyWeighted:
		return s.pickWeighted(avail)
	case StrategyLatency:
		return pickLowestLatency(avail)
	case StrategyFailover:
		return pickFailover(avail)
	default:
		return s.pickRoundRobin(avail)
	}
}

func (s *Scheduler) pickRoundRobin(avail []*model.ProxyRecord) int {
	s.rrIndex %= len(avail)
	i := s.rrIndex
	s.rrIndex++
	return i
}

func pickLeastUsed(avail []*model.ProxyRecord) int {
	best := 0
	for i, p := range avail[1:] {
		if p.TotalRequests < avail[best].TotalRequests {
			best = i + 1
		}
	}
	return best
}

func selectionWeight(p *model.ProxyRecord) float64 {
	if w := p.SuccessRate(); w > minSelectionWeight {
		return w
	}
	return minSelectionWeight
}

func (s *Scheduler) pickWeighted(avail []*model.ProxyRecord) int {
	total := 0.0
	for _, p := range avail {
		total += selectionWeight(p)
	}

	r := s.rng.Float64() * total
	for i, p := range avail {
		r -= selectionWeight(p)
		if r < 0 {
			return i
		}
	}
	// Float rounding can leave r at exactly zero
	return len(avail) - 1
}

// pickLowestLatency ranks proxies without a measured latency last.
func pickLowestLatency(avail []*model.ProxyRecord) int {
	best := -1
	for i, p := range avail {
		if p.LatencyMs <= 0 {
			continue
		}
		if best < 0 || p.LatencyMs < avail[best].LatencyMs {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func pickFailover(avail []*model.ProxyRecord) int {
	best := 0
	for i, p := range avail[1:] {
		if p.SuccessRatio() > avail[best].SuccessRatio() {
			best = i + 1
		}
	}
	return best
}
