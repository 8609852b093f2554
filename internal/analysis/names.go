package analysis

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/reflectcg/pkg/types"
)

// primitiveNames maps descriptor letters to source names.
var primitiveNames = map[string]string{
	"B": "byte",
	"C": "char",
	"D": "double",
	"F": "float",
	"I": "int",
	"J": "long",
	"S": "short",
	"Z": "boolean",
	"V": "void",
}

// NameCache provides efficient caching of source-level names for types and
// methods, which are computed once per reference and shared between the
// goroutines building reports.
type NameCache struct {
	typeCache   *xsync.Map[types.TypeReference, string]
	methodCache *xsync.Map[types.MethodReference, string]
}

func NewNameCache() *NameCache {
	return &NameCache{
		typeCache:   xsync.NewMap[types.TypeReference, string](),
		methodCache: xsync.NewMap[types.MethodReference, string](),
	}
}

// ComputeTypeName returns the source name of t: "java.util.ArrayList",
// "int" or "java.lang.String[]".
func (c *NameCache) ComputeTypeName(t types.TypeReference) string {
	if t.IsZero() {
		return ""
	}
	name, ok := c.typeCache.Load(t)
	if ok {
		return name
	}
	name = c.computeTypeName(t)
	c.typeCache.Store(t, name)
	return name
}

// ComputeMethodName returns the source name of m with its parameter types,
// e.g. "java.lang.Class.forName(java.lang.String)".
func (c *NameCache) ComputeMethodName(m types.MethodReference) string {
	if m.IsZero() {
		return ""
	}
	name, ok := c.methodCache.Load(m)
	if ok {
		return name
	}
	name = c.computeMethodName(m)
	c.methodCache.Store(m, name)
	return name
}

func (c *NameCache) computeTypeName(t types.TypeReference) string {
	switch {
	case t.IsArray():
		return c.ComputeTypeName(types.NewTypeReference(t.Name()[1:])) + "[]"
	case t.IsClass():
		return t.ClassName()
	}
	if name, ok := primitiveNames[t.Name()]; ok {
		return name
	}
	return t.Name()
}

func (c *NameCache) computeMethodName(m types.MethodReference) string {
	var builder strings.Builder
	builder.Grow(128)

	builder.WriteString(c.ComputeTypeName(m.Declaring))
	builder.WriteByte('.')
	builder.WriteString(m.Name)
	builder.WriteByte('(')
	for i, p := range m.Descriptor.Parameters() {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(c.ComputeTypeName(p))
	}
	builder.WriteByte(')')
	return builder.String()
}
