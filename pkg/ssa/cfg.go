package ssa

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yourbasic/graph"
	"golang.org/x/tools/container/intsets"
)

// BasicBlock is a maximal straight-line run of instructions.
type BasicBlock struct {
	ID    int
	Start int // index of the first instruction (inclusive)
	End   int // index after the last instruction (exclusive)

	// Normal lists successor block IDs reached by normal completion.
	Normal []int
	// Exceptional lists successor block IDs reached by an exception.
	Exceptional []int

	exit bool
}

// IsExit reports whether b is the synthetic exit block.
func (b *BasicBlock) IsExit() bool { return b.exit }

// Len returns the number of instructions in b.
func (b *BasicBlock) Len() int { return b.End - b.Start }

// CFG is a control-flow graph induced from a linear instruction sequence.
//
// Blocks[0] is the single entry block and the last block is a synthetic exit
// holding no instructions. Return instructions reach the exit through a
// normal edge; throw instructions and potentially excepting instructions
// reach it through an exceptional edge.
type CFG struct {
	Instructions []Instruction
	Blocks       []*BasicBlock

	blockOf []int // instruction index -> block ID
}

// NewCFG induces the control-flow graph of instrs.
//
// The construction has three passes:
//  1. Find leaders: index 0, every branch target, and every instruction
//     following a branch, return, throw or potentially excepting instruction.
//  2. Partition the instructions into blocks at the leaders.
//  3. Compute successor edges from each block's last instruction.
//
// Branch targets outside the sequence are ignored.
func NewCFG(instrs []Instruction) *CFG {
	n := len(instrs)

	// Pass 1: leaders.
	leaders := map[int]bool{0: true}
	for i, instr := range instrs {
		if endsBlock(instr) && i+1 < n {
			leaders[i+1] = true
		}
		for _, t := range Targets(instr) {
			if t >= 0 && t < n {
				leaders[t] = true
			}
		}
	}
	starts := make([]int, 0, len(leaders))
	for idx := range leaders {
		starts = append(starts, idx)
	}
	slices.Sort(starts)

	// Pass 2: partition.
	cfg := &CFG{
		Instructions: instrs,
		Blocks:       make([]*BasicBlock, 0, len(starts)+1),
		blockOf:      make([]int, n),
	}
	for i, start := range starts {
		end := n
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		b := &BasicBlock{ID: i, Start: start, End: end}
		for pc := start; pc < end; pc++ {
			cfg.blockOf[pc] = i
		}
		cfg.Blocks = append(cfg.Blocks, b)
	}
	exit := &BasicBlock{ID: len(cfg.Blocks), Start: n, End: n, exit: true}
	cfg.Blocks = append(cfg.Blocks, exit)

	// Pass 3: successors.
	next := func(b *BasicBlock) int {
		if b.End < n {
			return cfg.blockOf[b.End]
		}
		// Falling off the end leaves the method.
		return exit.ID
	}
	for _, b := range cfg.Blocks[:len(cfg.Blocks)-1] {
		if b.Len() == 0 {
			b.Normal = []int{exit.ID}
			continue
		}
		last := instrs[b.End-1]
		switch last.(type) {
		case *Return:
			b.Normal = addEdge(b.Normal, exit.ID)
		case *Throw:
			b.Exceptional = addEdge(b.Exceptional, exit.ID)
		default:
			for _, t := range Targets(last) {
				if t >= 0 && t < n {
					b.Normal = addEdge(b.Normal, cfg.blockOf[t])
				}
			}
			if FallsThrough(last) {
				b.Normal = addEdge(b.Normal, next(b))
			}
			if IsPEI(last) {
				b.Exceptional = addEdge(b.Exceptional, exit.ID)
			}
		}
	}
	return cfg
}

func addEdge(edges []int, id int) []int {
	if slices.Contains(edges, id) {
		return edges
	}
	return append(edges, id)
}

// Entry returns the entry block.
func (c *CFG) Entry() *BasicBlock { return c.Blocks[0] }

// Exit returns the synthetic exit block.
func (c *CFG) Exit() *BasicBlock { return c.Blocks[len(c.Blocks)-1] }

// BlockForInstruction returns the block holding the instruction at index pc.
func (c *CFG) BlockForInstruction(pc int) *BasicBlock {
	if pc < 0 || pc >= len(c.blockOf) {
		return nil
	}
	return c.Blocks[c.blockOf[pc]]
}

// Successors returns all successors of b, normal ones first.
func (c *CFG) Successors(b *BasicBlock) []*BasicBlock {
	out := make([]*BasicBlock, 0, len(b.Normal)+len(b.Exceptional))
	for _, id := range b.Normal {
		out = append(out, c.Blocks[id])
	}
	for _, id := range b.Exceptional {
		if !slices.Contains(b.Normal, id) {
			out = append(out, c.Blocks[id])
		}
	}
	return out
}

// Predecessors returns the blocks with an edge to b, in block order.
func (c *CFG) Predecessors(b *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	for _, p := range c.Blocks {
		if slices.Contains(p.Normal, b.ID) || slices.Contains(p.Exceptional, b.ID) {
			out = append(out, p)
		}
	}
	return out
}

// NormalExitPredecessors returns the blocks that leave the method normally.
func (c *CFG) NormalExitPredecessors() []*BasicBlock {
	exit := c.Exit().ID
	var out []*BasicBlock
	for _, b := range c.Blocks {
		if slices.Contains(b.Normal, exit) {
			out = append(out, b)
		}
	}
	return out
}

// ExceptionalExitPredecessors returns the blocks that may leave the method by
// an exception.
func (c *CFG) ExceptionalExitPredecessors() []*BasicBlock {
	exit := c.Exit().ID
	var out []*BasicBlock
	for _, b := range c.Blocks {
		if slices.Contains(b.Exceptional, exit) {
			out = append(out, b)
		}
	}
	return out
}

// Reachable returns the IDs of the blocks reachable from the entry.
func (c *CFG) Reachable() *intsets.Sparse {
	g := graph.New(len(c.Blocks))
	for _, b := range c.Blocks {
		for _, id := range b.Normal {
			g.Add(b.ID, id)
		}
		for _, id := range b.Exceptional {
			g.Add(b.ID, id)
		}
	}

	var seen intsets.Sparse
	seen.Insert(c.Entry().ID)
	graph.BFS(g, c.Entry().ID, func(_, w int, _ int64) {
		seen.Insert(w)
	})
	return &seen
}

// Unreachable returns the IDs of the blocks not reachable from the entry.
func (c *CFG) Unreachable() []int {
	seen := c.Reachable()
	var out []int
	for _, b := range c.Blocks {
		if !seen.Has(b.ID) {
			out = append(out, b.ID)
		}
	}
	return out
}

func (c *CFG) String() string {
	var sb strings.Builder
	for _, b := range c.Blocks {
		if b.exit {
			fmt.Fprintf(&sb, "BB%d exit\n", b.ID)
			continue
		}
		fmt.Fprintf(&sb, "BB%d [%d,%d) normal=%v exceptional=%v\n", b.ID, b.Start, b.End, b.Normal, b.Exceptional)
	}
	return sb.String()
}
