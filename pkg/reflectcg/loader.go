// Package reflectcg builds reflection-aware call graphs for programs
// described in YAML.
package reflectcg

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/715d/reflectcg/pkg/assembly"
	"github.com/715d/reflectcg/pkg/exclude"
	"github.com/715d/reflectcg/pkg/hierarchy"
	"github.com/715d/reflectcg/pkg/types"
)

// mainDescriptor is the descriptor of the default entrypoint, a static
// main(String[]).
const mainDescriptor = "([Ljava/lang/String;)V"

// Program is a loaded program: its class hierarchy, layered over the
// bootstrap classes, plus where analysis starts.
type Program struct {
	Hierarchy   *hierarchy.Hierarchy
	Entrypoints []types.MethodReference
	Exclusions  *exclude.Set
}

// programFile is the YAML form of a Program.
type programFile struct {
	Entrypoints []string    `yaml:"entrypoints"`
	Exclusions  []string    `yaml:"exclusions"`
	Classes     []classFile `yaml:"classes"`
}

type classFile struct {
	Name       string       `yaml:"name"`
	Super      string       `yaml:"super"`
	Interfaces []string     `yaml:"interfaces"`
	Abstract   bool         `yaml:"abstract"`
	Interface  bool         `yaml:"interface"`
	Methods    []methodFile `yaml:"methods"`
}

type methodFile struct {
	Name       string `yaml:"name"`
	Descriptor string `yaml:"descriptor"`
	Static     bool   `yaml:"static"`
	Abstract   bool   `yaml:"abstract"`
	Native     bool   `yaml:"native"`
	Body       string `yaml:"body"`
}

// LoadProgram loads the program described by the YAML file at path.
func LoadProgram(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	prog, err := ParseProgram(data)
	if err != nil {
		return nil, fmt.Errorf("loading program %s: %w", path, err)
	}
	return prog, nil
}

// ParseProgram parses a YAML program description.
//
// Without explicit entrypoints, every static main(String[]) is one.
func ParseProgram(data []byte) (*Program, error) {
	var file programFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	h := hierarchy.Bootstrap()
	for _, cf := range file.Classes {
		class, err := cf.build()
		if err != nil {
			return nil, err
		}
		if err := h.AddClass(class); err != nil {
			return nil, err
		}
	}

	exclusions, err := exclude.New(file.Exclusions...)
	if err != nil {
		return nil, err
	}

	prog := &Program{Hierarchy: h, Exclusions: exclusions}
	for _, ep := range file.Entrypoints {
		m, err := types.ParseMethodReference(ep)
		if err != nil {
			return nil, fmt.Errorf("entrypoint: %w", err)
		}
		prog.Entrypoints = append(prog.Entrypoints, m)
	}
	if len(prog.Entrypoints) == 0 {
		prog.Entrypoints = mainMethods(h)
	}
	if len(prog.Entrypoints) == 0 {
		return nil, fmt.Errorf("no entrypoints: declare one or add a static main%s", mainDescriptor)
	}
	return prog, nil
}

func (cf classFile) build() (*hierarchy.Class, error) {
	t := types.NewTypeReference(cf.Name)
	if !t.IsClass() {
		return nil, fmt.Errorf("class %q: expected a class type such as Lapp/Main", cf.Name)
	}
	super := types.JavaLangObject
	if cf.Super != "" {
		super = types.NewTypeReference(cf.Super)
	}
	class := hierarchy.NewClass(t, super)
	class.Abstract = cf.Abstract
	class.Interface = cf.Interface
	for _, i := range cf.Interfaces {
		class.Interfaces = append(class.Interfaces, types.NewTypeReference(i))
	}

	for _, mf := range cf.Methods {
		m, err := mf.build(t)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", t, err)
		}
		if class.Method(m.Ref.Selector()) != nil {
			return nil, fmt.Errorf("class %s: method %s defined twice", t, m.Ref.Selector())
		}
		class.AddMethod(m)
	}
	return class, nil
}

func (mf methodFile) build(declaring types.TypeReference) (*hierarchy.Method, error) {
	ref := types.NewMethodReference(declaring, mf.Name, types.Descriptor(mf.Descriptor))
	if mf.Name == "" {
		return nil, fmt.Errorf("method without a name")
	}
	if _, _, err := types.ParseDescriptor(mf.Descriptor); err != nil {
		return nil, fmt.Errorf("method %s: %w", mf.Name, err)
	}

	m := &hierarchy.Method{Ref: ref, Static: mf.Static, Abstract: mf.Abstract, Native: mf.Native}
	hasBody := strings.TrimSpace(mf.Body) != ""
	switch {
	case (mf.Abstract || mf.Native) && hasBody:
		return nil, fmt.Errorf("method %s: abstract or native method with a body", ref.Selector())
	case mf.Abstract || mf.Native:
		return m, nil
	case !hasBody:
		return nil, fmt.Errorf("method %s: missing body", ref.Selector())
	}

	body, err := assembly.Parse(mf.Body)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", ref.Selector(), err)
	}
	m.Body = body
	return m, nil
}

// mainMethods returns every static main(String[]) in h, sorted by class.
func mainMethods(h *hierarchy.Hierarchy) []types.MethodReference {
	var out []types.MethodReference
	for _, c := range h.Classes() {
		m := c.Method("main" + mainDescriptor)
		if m != nil && m.Static && m.HasBody() {
			out = append(out, m.Ref)
		}
	}
	return out
}
