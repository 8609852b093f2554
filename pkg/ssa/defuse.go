package ssa

import (
	"golang.org/x/tools/container/intsets"
)

// DefUse records, for every value, the instruction that defines it and the
// instructions that use it. Positions are instruction indices.
type DefUse struct {
	instrs []Instruction
	defs   map[int]int
	uses   map[int]*intsets.Sparse
}

// NewDefUse computes def-use chains over instrs. Values defined by no
// instruction (the formal parameters) have no def but may have uses.
func NewDefUse(instrs []Instruction) *DefUse {
	du := &DefUse{
		instrs: instrs,
		defs:   make(map[int]int),
		uses:   make(map[int]*intsets.Sparse),
	}
	for pc, instr := range instrs {
		for _, v := range instr.Defs() {
			du.defs[v] = pc
		}
		for _, v := range instr.Uses() {
			s := du.uses[v]
			if s == nil {
				s = new(intsets.Sparse)
				du.uses[v] = s
			}
			s.Insert(pc)
		}
	}
	return du
}

// Def returns the defining instruction of v and its index.
func (du *DefUse) Def(v int) (Instruction, int, bool) {
	pc, ok := du.defs[v]
	if !ok {
		return nil, NoValue, false
	}
	return du.instrs[pc], pc, true
}

// Uses returns the indices of the instructions using v, in ascending order.
func (du *DefUse) Uses(v int) []int {
	s := du.uses[v]
	if s == nil {
		return nil
	}
	return s.AppendTo(nil)
}

// UseInstructions returns the instructions using v, in program order.
func (du *DefUse) UseInstructions(v int) []Instruction {
	pcs := du.Uses(v)
	out := make([]Instruction, 0, len(pcs))
	for _, pc := range pcs {
		out = append(out, du.instrs[pc])
	}
	return out
}

// NumberOfUses returns the number of instructions using v.
func (du *DefUse) NumberOfUses(v int) int {
	if s := du.uses[v]; s != nil {
		return s.Len()
	}
	return 0
}

// IsUnused reports whether no instruction uses v.
func (du *DefUse) IsUnused(v int) bool { return du.NumberOfUses(v) == 0 }
