package fusion

import (
	"strings"

	"github.com/sarchlab/meshfuse/errs"
)

// A Strategy selects the engine driving the outer search.
type Strategy string

// Available strategies.
const (
	StrategyRandom     Strategy = "random"
	StrategyExhaustive Strategy = "exhaustive"
	StrategyAnnealing  Strategy = "annealing"
	StrategyTreeSearch Strategy = "mcts"
)

// ParseStrategy converts a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))

	switch s {
	case StrategyRandom, StrategyExhaustive, StrategyAnnealing, StrategyTreeSearch:
		return s, nil
	}

	return "", errs.Configf("unknown fusion search strategy %q", name)
}
