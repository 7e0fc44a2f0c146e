package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classWriter assembles minimal class files for tests.
type classWriter struct {
	pool  bytes.Buffer
	count uint16
	utf8s map[string]uint16
}

func newClassWriter() *classWriter {
	return &classWriter{count: 1, utf8s: make(map[string]uint16)}
}

func putU2(b *bytes.Buffer, v uint16) {
	binary.Write(b, binary.BigEndian, v)
}

func putU4(b *bytes.Buffer, v uint32) {
	binary.Write(b, binary.BigEndian, v)
}

func (w *classWriter) utf(s string) uint16 {
	if idx, ok := w.utf8s[s]; ok {
		return idx
	}
	w.pool.WriteByte(tagUtf8)
	putU2(&w.pool, uint16(len(s)))
	w.pool.WriteString(s)
	idx := w.count
	w.count++
	w.utf8s[s] = idx
	return idx
}

func (w *classWriter) class(name string) uint16 {
	n := w.utf(name)
	w.pool.WriteByte(tagClass)
	putU2(&w.pool, n)
	idx := w.count
	w.count++
	return idx
}

func (w *classWriter) long(v uint64) {
	w.pool.WriteByte(tagLong)
	binary.Write(&w.pool, binary.BigEndian, v)
	w.count += 2
}

func (w *classWriter) attr(name string, data []byte) []byte {
	var b bytes.Buffer
	putU2(&b, w.utf(name))
	putU4(&b, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

type testMember struct {
	access AccessFlags
	name   string
	desc   string
	attrs  [][]byte
}

func (w *classWriter) build(access AccessFlags, this, super uint16, ifaces []uint16, fields, methods []testMember, attrs [][]byte) []byte {
	var body bytes.Buffer
	putU2(&body, uint16(access))
	putU2(&body, this)
	putU2(&body, super)
	putU2(&body, uint16(len(ifaces)))
	for _, i := range ifaces {
		putU2(&body, i)
	}
	for _, group := range [][]testMember{fields, methods} {
		putU2(&body, uint16(len(group)))
		for _, m := range group {
			putU2(&body, uint16(m.access))
			putU2(&body, w.utf(m.name))
			putU2(&body, w.utf(m.desc))
			putU2(&body, uint16(len(m.attrs)))
			for _, a := range m.attrs {
				body.Write(a)
			}
		}
	}
	putU2(&body, uint16(len(attrs)))
	for _, a := range attrs {
		body.Write(a)
	}

	var out bytes.Buffer
	putU4(&out, Magic)
	putU2(&out, 0)
	putU2(&out, 61)
	putU2(&out, w.count)
	out.Write(w.pool.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

func greeterClass(t *testing.T) []byte {
	t.Helper()
	w := newClassWriter()
	this := w.class("com/example/Greeter")
	super := w.class("java/lang/Object")
	runnable := w.class("java/lang/Runnable")
	w.long(42)

	var params bytes.Buffer
	params.WriteByte(2)
	putU2(&params, w.utf("who"))
	putU2(&params, 0)
	putU2(&params, w.utf("times"))
	putU2(&params, 0)

	var lvt bytes.Buffer
	putU2(&lvt, 2)
	for _, e := range []struct {
		name string
		desc string
		slot uint16
	}{{"id", "J", 0}, {"label", "Ljava/lang/String;", 2}} {
		putU2(&lvt, 0)
		putU2(&lvt, 1)
		putU2(&lvt, w.utf(e.name))
		putU2(&lvt, w.utf(e.desc))
		putU2(&lvt, e.slot)
	}
	var code bytes.Buffer
	putU2(&code, 1)
	putU2(&code, 3)
	putU4(&code, 1)
	code.WriteByte(0xb1)
	putU2(&code, 0)
	putU2(&code, 1)
	code.Write(w.attr("LocalVariableTable", lvt.Bytes()))

	var sig bytes.Buffer
	putU2(&sig, w.utf("<T:Ljava/lang/Object;>Ljava/lang/Object;Ljava/lang/Runnable;"))

	return w.build(AccPublic, this, super, []uint16{runnable},
		[]testMember{{access: AccPrivate, name: "name", desc: "Ljava/lang/String;"}},
		[]testMember{
			{access: AccPublic, name: "<init>", desc: "()V"},
			{access: AccPublic, name: "greet", desc: "(Ljava/lang/String;I)Ljava/lang/String;",
				attrs: [][]byte{w.attr("MethodParameters", params.Bytes())}},
			{access: AccPublic | AccStatic, name: "tag", desc: "(JLjava/lang/String;)V",
				attrs: [][]byte{w.attr("Code", code.Bytes())}},
			{access: AccPublic | AccSynthetic | AccBridge, name: "access$000", desc: "()V"},
		},
		[][]byte{w.attr("Signature", sig.Bytes())},
	)
}

func TestParse(t *testing.T) {
	cf, err := Parse(bytes.NewReader(greeterClass(t)))
	require.NoError(t, err)

	assert.Equal(t, "com/example/Greeter", cf.Name)
	assert.Equal(t, "com.example.Greeter", cf.SourceName())
	assert.Equal(t, "java/lang/Object", cf.SuperName)
	assert.Equal(t, []string{"java/lang/Runnable"}, cf.Interfaces)
	assert.Equal(t, uint16(61), cf.MajorVersion)
	assert.True(t, cf.Access.IsPublic())
	assert.False(t, cf.IsInterface())
	assert.Equal(t, "<T:Ljava/lang/Object;>Ljava/lang/Object;Ljava/lang/Runnable;", cf.Signature)

	require.Len(t, cf.Fields, 1)
	assert.Equal(t, "name", cf.Fields[0].Name)
	assert.True(t, cf.Fields[0].Access.IsPrivate())

	require.Len(t, cf.Methods, 4)
	assert.True(t, cf.Methods[0].IsConstructor())

	greet := cf.Method("greet", "")
	require.NotNil(t, greet)
	assert.Equal(t, []string{"who", "times"}, greet.ParamNames)

	tag := cf.Method("tag", "(JLjava/lang/String;)V")
	require.NotNil(t, tag)
	assert.Equal(t, []string{"id", "label"}, tag.ParamNames, "long takes two slots")

	bridge := cf.Method("access$000", "")
	require.NotNil(t, bridge)
	assert.True(t, bridge.Access.IsSynthetic())
	assert.True(t, bridge.Access.IsBridge())

	assert.Nil(t, cf.Method("missing", ""))
	assert.NotNil(t, cf.Field("name"))
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xCA, 0xFE, 0xD0, 0x0D, 0, 0}))
	require.Error(t, err)
	assert.Equal(t, ErrBadMagic, errors.Cause(err))
}

func TestParseTruncated(t *testing.T) {
	data := greeterClass(t)
	_, err := Parse(bytes.NewReader(data[:len(data)/2]))
	assert.Error(t, err)
}

func TestIsAnonymous(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"java/util/Map", false},
		{"java/util/Map$Entry", false},
		{"com/example/Outer$1", true},
		{"com/example/Outer$2Local", true},
	}
	for _, tt := range tests {
		cf := &ClassFile{Name: tt.name}
		assert.Equal(t, tt.want, cf.IsAnonymous(), tt.name)
	}
}

func TestDecodeModifiedUtf8(t *testing.T) {
	assert.Equal(t, "abc", decodeModifiedUtf8([]byte("abc")))
	assert.Equal(t, "\u0000", decodeModifiedUtf8([]byte{0xC0, 0x80}))
	assert.Equal(t, "é", decodeModifiedUtf8([]byte{0xC3, 0xA9}))
	assert.Equal(t, "😀", decodeModifiedUtf8([]byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}))
}
