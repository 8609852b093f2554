package hierarchy

import (
	"github.com/715d/reflectcg/pkg/ssa"
	"github.com/715d/reflectcg/pkg/types"
)

// Platform method references.
var (
	ObjectInit       = types.NewMethodReference(types.JavaLangObject, types.InitName, "()V")
	ObjectGetClass   = types.NewMethodReference(types.JavaLangObject, "getClass", "()Ljava/lang/Class;")
	ClassForName     = types.NewMethodReference(types.JavaLangClass, "forName", "(Ljava/lang/String;)Ljava/lang/Class;")
	ClassNewInstance = types.NewMethodReference(types.JavaLangClass, "newInstance", "()Ljava/lang/Object;")
	ClassGetName     = types.NewMethodReference(types.JavaLangClass, "getName", "()Ljava/lang/String;")
)

var javaLangException = types.NewTypeReference("Ljava/lang/Exception")

// Bootstrap returns a hierarchy holding the platform classes every program
// links against: java.lang.Object, Class, String, Throwable, Exception and
// ClassNotFoundException.
func Bootstrap() *Hierarchy {
	h := New()

	object := NewClass(types.JavaLangObject, types.TypeReference{})
	object.AddMethod(&Method{Ref: ObjectInit, Body: []ssa.Instruction{&ssa.Return{Result: ssa.NoValue}}})
	object.AddMethod(&Method{Ref: ObjectGetClass, Native: true})

	class := NewClass(types.JavaLangClass, types.JavaLangObject)
	class.AddMethod(&Method{Ref: ClassForName, Static: true, Native: true})
	class.AddMethod(&Method{Ref: ClassNewInstance, Native: true})
	class.AddMethod(&Method{Ref: ClassGetName, Native: true})

	str := NewClass(types.JavaLangString, types.JavaLangObject)

	throwable := NewClass(types.JavaLangThrowable, types.JavaLangObject)
	throwable.AddMethod(&Method{
		Ref: types.NewMethodReference(types.JavaLangThrowable, types.InitName, "()V"),
		Body: []ssa.Instruction{
			&ssa.Invoke{
				Def:       ssa.NoValue,
				Exception: ssa.NoValue,
				Site:      types.CallSiteReference{PC: 0, Target: ObjectInit, Kind: types.InvokeSpecial},
				Args:      []int{1},
			},
			&ssa.Return{Result: ssa.NoValue},
		},
	})
	exception := NewClass(javaLangException, types.JavaLangThrowable)
	cnfe := NewClass(types.JavaLangClassNotFoundException, javaLangException)

	for _, c := range []*Class{object, class, str, throwable, exception, cnfe} {
		// Bootstrap types are distinct; AddClass cannot fail here.
		_ = h.AddClass(c)
	}
	return h
}
