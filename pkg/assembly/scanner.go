// Package assembly parses the textual form of method bodies, one
// instruction per line, into ssa instructions.
//
// The syntax is the one ssa.Instruction.String prints:
//
//	v2 = const "java.util.ArrayList"
//	v3 = invokestatic Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class; v2
//	v4 = new Ljava/util/ArrayList
//	invokespecial Ljava/util/ArrayList.<init>()V v4
//	putstatic Lapp/Main.list:Ljava/util/List; v4
//	if v2 goto 7
//	return v4
//
// Blank lines and text after '#' are ignored. An instruction's pc is its
// index among the instructions.
package assembly

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// SyntaxError reports a malformed line.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Compile patterns once at package initialization.
var (
	// Definition prefix: v3 = <rest>
	defPattern = regexp.MustCompile(`^v([1-9][0-9]*)\s*=\s*(.+)$`)

	// Value operand: v3
	valuePattern = regexp.MustCompile(`^v([1-9][0-9]*)$`)

	// String constant: const "..."
	constPattern = regexp.MustCompile(`^const\s+(".*")$`)
)

// Parse parses text into an instruction sequence.
func Parse(text string) ([]ssa.Instruction, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseFile parses the instructions in filename.
func ParseFile(filename string) ([]ssa.Instruction, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	instrs, err := ParseReader(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return instrs, nil
}

// ParseReader parses the instructions read from r.
func ParseReader(r io.Reader) ([]ssa.Instruction, error) {
	scanner := bufio.NewScanner(r)
	var (
		instrs []ssa.Instruction
		line   int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(stripComment(scanner.Text()))
		if text == "" {
			continue
		}
		instr, err := parseInstruction(len(instrs), text)
		if err != nil {
			return nil, &SyntaxError{Line: line, Text: text, Msg: err.Error()}
		}
		instrs = append(instrs, instr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return instrs, nil
}

// stripComment drops everything from the first '#' outside a string literal.
func stripComment(line string) string {
	inString, escaped := false, false
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case r == '#' && !inString:
			return line[:i]
		}
	}
	return line
}

func parseValue(s string) (int, error) {
	m := valuePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("expected value, got %q", s)
	}
	return strconv.Atoi(m[1])
}

func parseValues(ss []string) ([]int, error) {
	out := make([]int, 0, len(ss))
	for _, s := range ss {
		v, err := parseValue(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseType(s string) (types.TypeReference, error) {
	t := types.NewTypeReference(s)
	if !t.IsClass() && !t.IsArray() {
		return types.TypeReference{}, fmt.Errorf("expected class or array type, got %q", s)
	}
	return t, nil
}

func parseInstruction(pc int, text string) (ssa.Instruction, error) {
	def := ssa.NoValue
	if m := defPattern.FindStringSubmatch(text); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, err
		}
		def, text = v, m[2]
	}

	if m := constPattern.FindStringSubmatch(text); m != nil {
		s, err := strconv.Unquote(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad string constant: %w", err)
		}
		if def == ssa.NoValue {
			return nil, fmt.Errorf("const needs a result value")
		}
		return &ssa.Const{Def: def, Value: s}, nil
	}

	fields := strings.Fields(text)
	op, args := fields[0], fields[1:]
	needsDef := func(want bool) error {
		switch {
		case want && def == ssa.NoValue:
			return fmt.Errorf("%s needs a result value", op)
		case !want && def != ssa.NoValue:
			return fmt.Errorf("%s defines no value", op)
		}
		return nil
	}
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d operands, got %d", op, n, len(args))
		}
		return nil
	}

	if kind, ok := types.ParseInvokeKind(op); ok {
		return parseInvoke(pc, def, kind, args)
	}

	switch op {
	case "loadclass", "new":
		if err := needsDef(true); err != nil {
			return nil, err
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		t, err := parseType(args[0])
		if err != nil {
			return nil, err
		}
		if op == "loadclass" {
			return &ssa.LoadClass{Def: def, Type: t}, nil
		}
		return &ssa.New{Def: def, Site: types.NewSiteReference{PC: pc, Type: t}}, nil

	case "getfield", "getstatic":
		if err := needsDef(true); err != nil {
			return nil, err
		}
		static, n := op == "getstatic", 2
		if static {
			n = 1
		}
		if err := arity(n); err != nil {
			return nil, err
		}
		field, err := types.ParseFieldReference(args[0])
		if err != nil {
			return nil, err
		}
		ref := ssa.NoValue
		if !static {
			if ref, err = parseValue(args[1]); err != nil {
				return nil, err
			}
		}
		return &ssa.GetField{Def: def, Ref: ref, Field: field}, nil

	case "putfield", "putstatic":
		if err := needsDef(false); err != nil {
			return nil, err
		}
		static, n := op == "putstatic", 3
		if static {
			n = 2
		}
		if err := arity(n); err != nil {
			return nil, err
		}
		field, err := types.ParseFieldReference(args[0])
		if err != nil {
			return nil, err
		}
		vals, err := parseValues(args[1:])
		if err != nil {
			return nil, err
		}
		if static {
			return &ssa.PutField{Ref: ssa.NoValue, Val: vals[0], Field: field}, nil
		}
		return &ssa.PutField{Ref: vals[0], Val: vals[1], Field: field}, nil

	case "return":
		if err := needsDef(false); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &ssa.Return{Result: ssa.NoValue}, nil
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		v, err := parseValue(args[0])
		if err != nil {
			return nil, err
		}
		return &ssa.Return{Result: v}, nil

	case "throw":
		if err := needsDef(false); err != nil {
			return nil, err
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		v, err := parseValue(args[0])
		if err != nil {
			return nil, err
		}
		return &ssa.Throw{Exception: v}, nil

	case "goto":
		if err := needsDef(false); err != nil {
			return nil, err
		}
		if err := arity(1); err != nil {
			return nil, err
		}
		target, err := strconv.Atoi(args[0])
		if err != nil || target < 0 {
			return nil, fmt.Errorf("bad branch target %q", args[0])
		}
		return &ssa.Goto{Target: target}, nil

	case "if":
		if err := needsDef(false); err != nil {
			return nil, err
		}
		if err := arity(3); err != nil {
			return nil, err
		}
		if args[1] != "goto" {
			return nil, fmt.Errorf("expected goto, got %q", args[1])
		}
		cond, err := parseValue(args[0])
		if err != nil {
			return nil, err
		}
		target, err := strconv.Atoi(args[2])
		if err != nil || target < 0 {
			return nil, fmt.Errorf("bad branch target %q", args[2])
		}
		return &ssa.If{Cond: cond, Target: target}, nil
	}
	return nil, fmt.Errorf("unknown instruction %q", op)
}

// parseInvoke parses "<kind> <method> args..." and checks the argument count
// against the target's descriptor.
func parseInvoke(pc, def int, kind types.InvokeKind, args []string) (ssa.Instruction, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs a target method", kind)
	}
	target, err := types.ParseMethodReference(args[0])
	if err != nil {
		return nil, err
	}
	vals, err := parseValues(args[1:])
	if err != nil {
		return nil, err
	}
	want := target.Descriptor.NumberOfParameters()
	if kind.HasReceiver() {
		want++
	}
	if len(vals) != want {
		return nil, fmt.Errorf("%s %s takes %d arguments, got %d", kind, target, want, len(vals))
	}
	if def != ssa.NoValue && target.Descriptor.ReturnsVoid() {
		return nil, fmt.Errorf("%s %s returns void", kind, target)
	}
	return &ssa.Invoke{
		Def:       def,
		Exception: ssa.NoValue,
		Site:      types.CallSiteReference{PC: pc, Target: target, Kind: kind},
		Args:      vals,
	}, nil
}
