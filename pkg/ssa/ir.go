package ssa

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/715d/reflectcg/pkg/callgraph"
	"github.com/715d/reflectcg/pkg/types"
)

// IR is the analyzable form of one method body under one context: the
// instruction sequence plus the control-flow graph induced from it.
//
// An IR is immutable once built and may be shared between goroutines.
type IR struct {
	Method       types.MethodReference
	Context      callgraph.Context
	Instructions []Instruction
	CFG          *CFG

	// NumberOfParameters counts the formal parameters, receiver included.
	NumberOfParameters int
}

// NewIR builds the IR of method under ctx from instrs. The CFG is induced
// from instrs; instrs must not be modified afterwards.
func NewIR(method types.MethodReference, ctx callgraph.Context, static bool, instrs []Instruction) *IR {
	params := method.Descriptor.NumberOfParameters()
	if !static {
		params++
	}
	return &IR{
		Method:             method,
		Context:            ctx,
		Instructions:       instrs,
		CFG:                NewCFG(instrs),
		NumberOfParameters: params,
	}
}

// Parameter returns the value number of the i-th formal parameter.
func (ir *IR) Parameter(i int) int { return i + 1 }

// FirstLocal returns the first value number after the formal parameters.
func (ir *IR) FirstLocal() int { return ir.NumberOfParameters + 1 }

// MaxValueNumber returns the largest value number used or defined.
func (ir *IR) MaxValueNumber() int {
	maxV := ir.NumberOfParameters
	for _, instr := range ir.Instructions {
		for _, v := range instr.Defs() {
			maxV = max(maxV, v)
		}
		for _, v := range instr.Uses() {
			maxV = max(maxV, v)
		}
	}
	return maxV
}

// DefUse computes the def-use chains of the IR.
func (ir *IR) DefUse() *DefUse { return NewDefUse(ir.Instructions) }

// Equal reports whether ir and other hold structurally equal instruction
// sequences for the same method and context.
func (ir *IR) Equal(other *IR) bool {
	if ir == nil || other == nil {
		return ir == other
	}
	if ir.Method != other.Method || ir.Context != other.Context {
		return false
	}
	return EqualInstructions(ir.Instructions, other.Instructions)
}

// EqualInstructions reports whether a and b have the same variants with the
// same operands, position by position.
func EqualInstructions(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (ir *IR) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", ir.Method, ir.Context)
	for pc, instr := range ir.Instructions {
		fmt.Fprintf(&sb, "%3d: %s\n", pc, instr)
	}
	return sb.String()
}
