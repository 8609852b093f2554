// Package ssa implements the instruction model shared by real and synthetic
// method bodies, together with the structures derived from an instruction
// sequence: the induced control-flow graph and def-use chains.
//
// Values are numbered. Numbers 1..n denote the formal parameters of the
// method (receiver first for instance methods); instructions define further
// values. NoValue marks an absent operand.
package ssa

import (
	"fmt"
	"strings"

	"github.com/715d/reflectcg/pkg/types"
)

// NoValue marks an absent def or use.
const NoValue = -1

// Instruction is one operation of a method body.
//
// The set of instructions is closed: every implementation lives in this
// package.
type Instruction interface {
	// Defs returns the values defined by the instruction.
	Defs() []int
	// Uses returns the values read by the instruction, in operand order.
	Uses() []int
	String() string

	instruction()
}

// Const defines Def as a string constant.
type Const struct {
	Def   int
	Value string
}

// LoadClass defines Def as the class object denoting Type.
type LoadClass struct {
	Def  int
	Type types.TypeReference
}

// New allocates an object of Site.Type into Def.
type New struct {
	Def  int
	Site types.NewSiteReference
}

// Invoke calls Site.Target with Args (receiver first for non-static calls).
// Def receives the result, NoValue for void calls. Exception receives the
// exception raised by the callee, NoValue when it is not tracked.
type Invoke struct {
	Def       int
	Exception int
	Site      types.CallSiteReference
	Args      []int
}

// GetField reads Field from Ref into Def. Static reads have Ref == NoValue.
type GetField struct {
	Def   int
	Ref   int
	Field types.FieldReference
}

// PutField writes Val into Field of Ref. Static writes have Ref == NoValue.
type PutField struct {
	Ref   int
	Val   int
	Field types.FieldReference
}

// Return leaves the method normally, yielding Result (NoValue for void).
type Return struct {
	Result int
}

// Throw leaves the method exceptionally, raising Exception.
type Throw struct {
	Exception int
}

// Goto transfers control to the instruction at index Target.
type Goto struct {
	Target int
}

// If transfers control to Target when Cond is non-zero and falls through
// otherwise.
type If struct {
	Cond   int
	Target int
}

func (*Const) instruction()     {}
func (*LoadClass) instruction() {}
func (*New) instruction()       {}
func (*Invoke) instruction()    {}
func (*GetField) instruction()  {}
func (*PutField) instruction()  {}
func (*Return) instruction()    {}
func (*Throw) instruction()     {}
func (*Goto) instruction()      {}
func (*If) instruction()        {}

func (i *Const) Defs() []int     { return []int{i.Def} }
func (i *LoadClass) Defs() []int { return []int{i.Def} }
func (i *New) Defs() []int       { return []int{i.Def} }
func (i *Invoke) Defs() []int    { return values(i.Def, i.Exception) }
func (i *GetField) Defs() []int  { return []int{i.Def} }
func (i *PutField) Defs() []int  { return nil }
func (i *Return) Defs() []int    { return nil }
func (i *Throw) Defs() []int     { return nil }
func (i *Goto) Defs() []int      { return nil }
func (i *If) Defs() []int        { return nil }

func (i *Const) Uses() []int     { return nil }
func (i *LoadClass) Uses() []int { return nil }
func (i *New) Uses() []int       { return nil }
func (i *Invoke) Uses() []int    { return append([]int(nil), i.Args...) }
func (i *GetField) Uses() []int  { return values(i.Ref) }
func (i *PutField) Uses() []int  { return values(i.Ref, i.Val) }
func (i *Return) Uses() []int    { return values(i.Result) }
func (i *Throw) Uses() []int     { return []int{i.Exception} }
func (i *Goto) Uses() []int      { return nil }
func (i *If) Uses() []int        { return []int{i.Cond} }

// values returns vs without NoValue entries.
func values(vs ...int) []int {
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		if v != NoValue {
			out = append(out, v)
		}
	}
	return out
}

func (i *Const) String() string { return fmt.Sprintf("v%d = const %q", i.Def, i.Value) }

func (i *LoadClass) String() string { return fmt.Sprintf("v%d = loadclass %s", i.Def, i.Type) }

func (i *New) String() string { return fmt.Sprintf("v%d = new %s", i.Def, i.Site.Type) }

func (i *Invoke) String() string {
	var b strings.Builder
	if i.Def != NoValue {
		fmt.Fprintf(&b, "v%d = ", i.Def)
	}
	b.WriteString(i.Site.Kind.String())
	b.WriteByte(' ')
	b.WriteString(i.Site.Target.String())
	for _, a := range i.Args {
		fmt.Fprintf(&b, " v%d", a)
	}
	return b.String()
}

func (i *GetField) String() string {
	if i.Ref == NoValue {
		return fmt.Sprintf("v%d = getstatic %s", i.Def, i.Field)
	}
	return fmt.Sprintf("v%d = getfield %s v%d", i.Def, i.Field, i.Ref)
}

func (i *PutField) String() string {
	if i.Ref == NoValue {
		return fmt.Sprintf("putstatic %s v%d", i.Field, i.Val)
	}
	return fmt.Sprintf("putfield %s v%d v%d", i.Field, i.Ref, i.Val)
}

func (i *Return) String() string {
	if i.Result == NoValue {
		return "return"
	}
	return fmt.Sprintf("return v%d", i.Result)
}

func (i *Throw) String() string { return fmt.Sprintf("throw v%d", i.Exception) }

func (i *Goto) String() string { return fmt.Sprintf("goto %d", i.Target) }

func (i *If) String() string { return fmt.Sprintf("if v%d goto %d", i.Cond, i.Target) }

// IsPEI reports whether instr is a potentially excepting instruction: one
// that may transfer control to an exception handler (here, the method exit)
// without an explicit throw.
func IsPEI(instr Instruction) bool {
	switch instr.(type) {
	case *Invoke, *New, *GetField, *PutField:
		return true
	}
	return false
}

// FallsThrough reports whether control may reach the next instruction after
// instr completes normally.
func FallsThrough(instr Instruction) bool {
	switch instr.(type) {
	case *Return, *Throw, *Goto:
		return false
	}
	return true
}

// Targets returns the explicit branch targets of instr.
func Targets(instr Instruction) []int {
	switch i := instr.(type) {
	case *Goto:
		return []int{i.Target}
	case *If:
		return []int{i.Target}
	}
	return nil
}

// endsBlock reports whether instr terminates its basic block.
func endsBlock(instr Instruction) bool {
	return !FallsThrough(instr) || len(Targets(instr)) > 0 || IsPEI(instr)
}
