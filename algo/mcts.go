package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/errs"
)

// HookPosTreeIteration marks the end of one tree-search iteration. The item is
// a TreeEvent.
var HookPosTreeIteration = &sim.HookPos{Name: "MCTS Iteration"}

// TreeEvent describes one tree-search iteration.
type TreeEvent struct {
	Iteration int
	Leaf      int
	Reward    float64
}

// A TreeState is a node of a sequential decision problem. Higher reward is
// better.
type TreeState[S any] interface {
	// Actions returns the number of actions available in the state.
	Actions() int

	// Apply returns the state reached by taking an action.
	Apply(action int) S

	// Terminal reports whether the state ends the episode.
	Terminal() bool

	// Reward scores a terminal state.
	Reward() float64
}

// noParent is the parent index of the root.
const noParent = -1

type treeNode[S any] struct {
	state    S
	parent   int
	action   int
	children []int
	untried  []int
	visits   int
	reward   float64
}

// TreeSearchBuilder creates Monte-Carlo tree searches.
type TreeSearchBuilder[S TreeState[S]] struct {
	budget int
	rng    *rand.Rand
}

// NewTreeSearchBuilder returns a builder with a budget of 100 iterations.
func NewTreeSearchBuilder[S TreeState[S]]() TreeSearchBuilder[S] {
	return TreeSearchBuilder[S]{budget: 100}
}

// WithBudget sets the number of iterations per Search call.
func (b TreeSearchBuilder[S]) WithBudget(n int) TreeSearchBuilder[S] {
	b.budget = n
	return b
}

// WithRand sets the random source.
func (b TreeSearchBuilder[S]) WithRand(rng *rand.Rand) TreeSearchBuilder[S] {
	b.rng = rng
	return b
}

// Build creates a tree search rooted at the given state.
func (b TreeSearchBuilder[S]) Build(root S) (*MonteCarloTreeSearch[S], error) {
	if b.budget <= 0 {
		return nil, errs.Configf("tree search budget %d is not positive", b.budget)
	}

	if b.rng == nil {
		return nil, errs.Configf("tree search needs a random source")
	}

	t := &MonteCarloTreeSearch[S]{
		HookableBase: sim.NewHookableBase(),
		budget:       b.budget,
		rng:          b.rng,
	}
	t.addNode(root, noParent, -1)

	return t, nil
}

// MonteCarloTreeSearch grows a search tree with UCB1 selection and random
// rollouts. Nodes live in an arena and refer to each other by index.
type MonteCarloTreeSearch[S TreeState[S]] struct {
	*sim.HookableBase

	budget    int
	rng       *rand.Rand
	nodes     []treeNode[S]
	iteration int

	best       S
	bestReward float64
	hasBest    bool
}

// Root returns the index of the root node.
func (t *MonteCarloTreeSearch[S]) Root() int {
	return 0
}

// NumNodes returns the number of nodes in the tree.
func (t *MonteCarloTreeSearch[S]) NumNodes() int {
	return len(t.nodes)
}

// State returns the state of a node.
func (t *MonteCarloTreeSearch[S]) State(node int) S {
	return t.nodes[node].state
}

// Parent returns the parent of a node, or -1 for the root.
func (t *MonteCarloTreeSearch[S]) Parent(node int) int {
	return t.nodes[node].parent
}

// Action returns the action that led from the parent to the node.
func (t *MonteCarloTreeSearch[S]) Action(node int) int {
	return t.nodes[node].action
}

// Children returns the expanded children of a node.
func (t *MonteCarloTreeSearch[S]) Children(node int) []int {
	return append([]int(nil), t.nodes[node].children...)
}

// Visits returns the visit count of a node.
func (t *MonteCarloTreeSearch[S]) Visits(node int) int {
	return t.nodes[node].visits
}

// Reward returns the accumulated reward of a node.
func (t *MonteCarloTreeSearch[S]) Reward(node int) float64 {
	return t.nodes[node].reward
}

// Best returns the terminal state with the highest reward reached by any
// rollout so far.
func (t *MonteCarloTreeSearch[S]) Best() (S, float64, bool) {
	return t.best, t.bestReward, t.hasBest
}

// Search runs the iteration budget: tree policy, rollout, back-propagation.
func (t *MonteCarloTreeSearch[S]) Search(ctx context.Context) error {
	for i := 0; i < t.budget; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		leaf := t.treePolicy(t.Root())
		reward := t.rollout(leaf)
		t.backPropagate(leaf, reward)

		t.InvokeHook(sim.HookCtx{
			Domain: t,
			Pos:    HookPosTreeIteration,
			Item: TreeEvent{
				Iteration: t.iteration,
				Leaf:      leaf,
				Reward:    reward,
			},
		})
		t.iteration++
	}

	return nil
}

func (t *MonteCarloTreeSearch[S]) addNode(state S, parent, action int) int {
	n := treeNode[S]{
		state:  state,
		parent: parent,
		action: action,
	}

	if !isLeafState(state) {
		n.untried = make([]int, state.Actions())
		for i := range n.untried {
			n.untried[i] = i
		}
	}

	t.nodes = append(t.nodes, n)
	index := len(t.nodes) - 1

	if parent != noParent {
		t.nodes[parent].children = append(t.nodes[parent].children, index)
	}

	return index
}

func isLeafState[S TreeState[S]](s S) bool {
	return s.Terminal() || s.Actions() <= 0
}

func (t *MonteCarloTreeSearch[S]) treePolicy(node int) int {
	for !isLeafState(t.nodes[node].state) {
		if len(t.nodes[node].untried) > 0 {
			return t.expand(node)
		}

		node = t.selectChild(node)
	}

	return node
}

func (t *MonteCarloTreeSearch[S]) expand(node int) int {
	untried := t.nodes[node].untried
	k := t.rng.Intn(len(untried))
	action := untried[k]

	untried[k] = untried[len(untried)-1]
	t.nodes[node].untried = untried[:len(untried)-1]

	next := t.nodes[node].state.Apply(action)

	return t.addNode(next, node, action)
}

// selectChild picks the child maximizing
// reward/visits + sqrt(2 ln(parentVisits) / visits).
func (t *MonteCarloTreeSearch[S]) selectChild(node int) int {
	parent := t.nodes[node]
	best := parent.children[0]
	bestScore := math.Inf(-1)

	for _, c := range parent.children {
		child := t.nodes[c]
		if child.visits == 0 {
			return c
		}

		visits := float64(child.visits)
		score := child.reward/visits +
			math.Sqrt(2*math.Log(float64(parent.visits))/visits)

		if score > bestScore {
			best, bestScore = c, score
		}
	}

	return best
}

func (t *MonteCarloTreeSearch[S]) rollout(node int) float64 {
	state := t.nodes[node].state

	for !isLeafState(state) {
		state = state.Apply(t.rng.Intn(state.Actions()))
	}

	reward := state.Reward()
	if !t.hasBest || reward > t.bestReward {
		t.best, t.bestReward, t.hasBest = state, reward, true
	}

	return reward
}

func (t *MonteCarloTreeSearch[S]) backPropagate(node int, reward float64) {
	for node != noParent {
		t.nodes[node].visits++
		t.nodes[node].reward += reward
		node = t.nodes[node].parent
	}
}
