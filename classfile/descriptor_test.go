package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldDescriptor(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"I", "int"},
		{"Z", "boolean"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"[B", "byte[]"},
		{"[[Ljava/util/Map$Entry;", "java.util.Map$Entry[][]"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			ft := ParseFieldDescriptor(tt.desc)
			require.NotNil(t, ft)
			assert.Equal(t, tt.want, ft.Source())
		})
	}

	for _, bad := range []string{"", "X", "Ljava/lang/String", "II", "["} {
		assert.Nil(t, ParseFieldDescriptor(bad), bad)
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc   string
		params []string
		ret    string
	}{
		{"()V", nil, ""},
		{"(I)Ljava/lang/String;", []string{"int"}, "java.lang.String"},
		{"(JD[Ljava/lang/Object;)[I", []string{"long", "double", "java.lang.Object[]"}, "int[]"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			md := ParseMethodDescriptor(tt.desc)
			require.NotNil(t, md)
			var params []string
			for _, p := range md.Parameters {
				params = append(params, p.Source())
			}
			assert.Equal(t, tt.params, params)
			if tt.ret == "" {
				assert.Nil(t, md.ReturnType)
			} else {
				require.NotNil(t, md.ReturnType)
				assert.Equal(t, tt.ret, md.ReturnType.Source())
			}
		})
	}

	for _, bad := range []string{"", "V", "(I", "(Q)V"} {
		assert.Nil(t, ParseMethodDescriptor(bad), bad)
	}
}

func TestSlots(t *testing.T) {
	assert.Equal(t, 2, FieldType{BaseType: "long"}.Slots())
	assert.Equal(t, 2, FieldType{BaseType: "double"}.Slots())
	assert.Equal(t, 1, FieldType{BaseType: "double", ArrayDepth: 1}.Slots())
	assert.Equal(t, 1, FieldType{ClassName: "java/lang/String"}.Slots())
}

func TestParseMethodSignature(t *testing.T) {
	tests := []struct {
		sig        string
		typeParams []string
		params     []string
		ret        string
	}{
		{
			sig:    "(Ljava/util/List<Ljava/lang/String;>;)V",
			params: []string{"java.util.List<java.lang.String>"},
		},
		{
			sig:        "<T:Ljava/lang/Object;>([TT;)Ljava/util/List<TT;>;",
			typeParams: []string{"T"},
			params:     []string{"T[]"},
			ret:        "java.util.List<T>",
		},
		{
			sig:    "(Ljava/util/Collection<+TE;>;)Z",
			params: []string{"java.util.Collection<? extends E>"},
			ret:    "boolean",
		},
		{
			sig:    "(Ljava/util/Comparator<-TE;>;Ljava/util/List<*>;)V",
			params: []string{"java.util.Comparator<?>", "java.util.List<?>"},
		},
		{
			sig: "()Ljava/util/Map<TK;TV;>.Entry<TK;TV;>;",
			ret: "java.util.Map$Entry<K, V>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			ms, err := ParseMethodSignature(tt.sig)
			require.NoError(t, err)
			var tps []string
			for _, tp := range ms.TypeParams {
				tps = append(tps, tp.Name)
			}
			assert.Equal(t, tt.typeParams, tps)
			var params []string
			for _, p := range ms.Params {
				params = append(params, p.Source())
			}
			assert.Equal(t, tt.params, params)
			if tt.ret == "" {
				assert.Nil(t, ms.Return)
			} else {
				require.NotNil(t, ms.Return)
				assert.Equal(t, tt.ret, ms.Return.Source())
			}
		})
	}

	_, err := ParseMethodSignature("(Ljava/lang/String")
	assert.Error(t, err)
}

func TestParseClassSignature(t *testing.T) {
	cs, err := ParseClassSignature("<K:Ljava/lang/Object;V:Ljava/lang/Object;>Ljava/util/AbstractMap<TK;TV;>;Ljava/util/Map<TK;TV;>;Ljava/lang/Cloneable;")
	require.NoError(t, err)
	require.Len(t, cs.TypeParams, 2)
	assert.Equal(t, "K", cs.TypeParams[0].Name)
	require.NotNil(t, cs.TypeParams[0].ClassBound)
	assert.Equal(t, "java.lang.Object", cs.TypeParams[0].ClassBound.Source())
	assert.Equal(t, "java.util.AbstractMap<K, V>", cs.Super.Source())
	require.Len(t, cs.Interfaces, 2)
	assert.Equal(t, "java.util.Map<K, V>", cs.Interfaces[0].Source())
	assert.Equal(t, "java.lang.Cloneable", cs.Interfaces[1].Source())

	cs, err = ParseClassSignature("<T::Ljava/lang/Comparable<TT;>;>Ljava/lang/Object;")
	require.NoError(t, err)
	require.Len(t, cs.TypeParams, 1)
	assert.Nil(t, cs.TypeParams[0].ClassBound)
	require.Len(t, cs.TypeParams[0].InterfaceBounds, 1)
	assert.Equal(t, "java.lang.Comparable<T>", cs.TypeParams[0].InterfaceBounds[0].Source())
}

func TestParseFieldSignature(t *testing.T) {
	ts, err := ParseFieldSignature("Ljava/util/Map<Ljava/lang/String;[I>;")
	require.NoError(t, err)
	assert.Equal(t, SigClass, ts.Kind)
	assert.Equal(t, "java.util.Map<java.lang.String, int[]>", ts.Source())
}
