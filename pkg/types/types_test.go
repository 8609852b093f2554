package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeFromClassName(t *testing.T) {
	tests := []struct {
		name      string
		className string
		expected  TypeReference
	}{
		{name: "dotted class", className: "java.util.ArrayList", expected: NewTypeReference("Ljava/util/ArrayList")},
		{name: "surrounding space", className: "  app.Main ", expected: NewTypeReference("Lapp/Main")},
		{name: "empty", className: "", expected: TypeReference{}},
		{name: "internal form rejected", className: "java/util/List", expected: TypeReference{}},
		{name: "array rejected", className: "[I", expected: TypeReference{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, TypeFromClassName(tt.className))
		})
	}
}

func TestTypeReference_ClassName(t *testing.T) {
	require.Equal(t, "java.util.ArrayList", NewTypeReference("Ljava/util/ArrayList;").ClassName())
	require.Equal(t, "[I", NewTypeReference("[I").ClassName())
	require.True(t, TypeReference{}.IsZero())
	require.True(t, JavaLangClass.IsClass())
	require.False(t, NewTypeReference("[Ljava/lang/String").IsClass())
	require.True(t, NewTypeReference("[Ljava/lang/String").IsArray())
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		params     []TypeReference
		ret        TypeReference
		expectErr  bool
	}{
		{
			name:       "forName",
			descriptor: "(Ljava/lang/String;)Ljava/lang/Class;",
			params:     []TypeReference{JavaLangString},
			ret:        JavaLangClass,
		},
		{
			name:       "no params void",
			descriptor: "()V",
			ret:        Void,
		},
		{
			name:       "mixed params",
			descriptor: "(I[Ljava/lang/String;J)Z",
			params: []TypeReference{
				NewTypeReference("I"),
				NewTypeReference("[Ljava/lang/String"),
				NewTypeReference("J"),
			},
			ret: NewTypeReference("Z"),
		},
		{name: "missing paren", descriptor: "Ljava/lang/String;)V", expectErr: true},
		{name: "unterminated class", descriptor: "(Ljava/lang/String)V", expectErr: true},
		{name: "bad char", descriptor: "(Q)V", expectErr: true},
		{name: "trailing garbage", descriptor: "()II", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ret, err := ParseDescriptor(tt.descriptor)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.params, params)
			require.Equal(t, tt.ret, ret)
		})
	}
}

func TestDescriptor_Helpers(t *testing.T) {
	d := Descriptor("(Ljava/lang/String;I)V")
	require.Equal(t, 2, d.NumberOfParameters())
	require.True(t, d.ReturnsVoid())
	require.Equal(t, Void, d.ReturnType())
	require.False(t, Descriptor("()Ljava/lang/Object;").ReturnsVoid())
}

func TestParseMethodReference(t *testing.T) {
	const text = "Ljava/lang/Class.forName(Ljava/lang/String;)Ljava/lang/Class;"
	m, err := ParseMethodReference(text)
	require.NoError(t, err)
	require.Equal(t, JavaLangClass, m.Declaring)
	require.Equal(t, "forName", m.Name)
	require.Equal(t, Descriptor("(Ljava/lang/String;)Ljava/lang/Class;"), m.Descriptor)
	require.Equal(t, text, m.String())

	// Interned by value: two parses compare equal.
	again, err := ParseMethodReference(text)
	require.NoError(t, err)
	require.True(t, m == again)

	ctor, err := ParseMethodReference("Ljava/util/ArrayList.<init>()V")
	require.NoError(t, err)
	require.True(t, ctor.IsInit())
	require.Equal(t, "<init>()V", ctor.Selector())

	for _, bad := range []string{"forName", ".forName()V", "Lapp/Main.()V", "Lapp/Main.run(Q)V"} {
		_, err := ParseMethodReference(bad)
		require.Error(t, err, bad)
	}
}

func TestParseFieldReference(t *testing.T) {
	f, err := ParseFieldReference("Lapp/Config.name:Ljava/lang/String;")
	require.NoError(t, err)
	require.Equal(t, NewTypeReference("Lapp/Config"), f.Declaring)
	require.Equal(t, "name", f.Name)
	require.Equal(t, JavaLangString, f.Type)
	require.Equal(t, "Lapp/Config.name:Ljava/lang/String;", f.String())

	f, err = ParseFieldReference("Lapp/Config.count:I")
	require.NoError(t, err)
	require.Equal(t, "Lapp/Config.count:I", f.String())

	_, err = ParseFieldReference("Lapp/Config.count")
	require.Error(t, err)
	_, err = ParseFieldReference("Lapp/Config.count:II")
	require.Error(t, err)
}

func TestInvokeKind(t *testing.T) {
	for _, k := range []InvokeKind{InvokeStatic, InvokeSpecial, InvokeVirtual, InvokeInterface} {
		parsed, ok := ParseInvokeKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, parsed)
	}
	_, ok := ParseInvokeKind("invokedynamic")
	require.False(t, ok)

	require.False(t, InvokeStatic.IsDispatch())
	require.False(t, InvokeSpecial.IsDispatch())
	require.True(t, InvokeVirtual.IsDispatch())
	require.True(t, InvokeInterface.IsDispatch())
	require.False(t, InvokeStatic.HasReceiver())
	require.True(t, InvokeSpecial.HasReceiver())
}
