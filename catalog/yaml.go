package catalog

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Types    []yamlType `yaml:"types"`
	Packages []string   `yaml:"packages"`
}

type yamlType struct {
	Name         string          `yaml:"name"`
	Kind         Kind            `yaml:"kind"`
	Abstract     bool            `yaml:"abstract"`
	Super        string          `yaml:"super"`
	Interfaces   []string        `yaml:"interfaces"`
	TypeParams   []yamlTypeParam `yaml:"typeParams"`
	Constructors []yamlCallable  `yaml:"constructors"`
	Methods      []yamlCallable  `yaml:"methods"`
	Fields       []yamlField     `yaml:"fields"`
}

type yamlTypeParam struct {
	Name   string   `yaml:"name"`
	Bounds []string `yaml:"bounds"`
}

type yamlCallable struct {
	Name       string          `yaml:"name"`
	Params     []yamlParam     `yaml:"params"`
	Returns    string          `yaml:"returns"`
	TypeParams []yamlTypeParam `yaml:"typeParams"`
	Static     bool            `yaml:"static"`
	Synthetic  bool            `yaml:"synthetic"`
	Varargs    bool            `yaml:"varargs"`
}

type yamlParam struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

type yamlField struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Static bool   `yaml:"static"`
}

// LoadYAML reads a catalog document into a new catalog.
func LoadYAML(r io.Reader, opts ...Option) (*Catalog, error) {
	b := NewBuilder(opts...)
	if err := b.LoadYAML(r); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// LoadYAML adds the types of a catalog document. Type strings use Java
// source syntax. Unqualified class names resolve to a type declared in the
// same document with that simple name, then to java.lang.
func (b *Builder) LoadYAML(r io.Reader) error {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(err, "decode catalog yaml")
	}

	declared := make(map[string]string, len(doc.Types))
	for _, yt := range doc.Types {
		simple := yt.Name
		if i := strings.LastIndexByte(simple, '.'); i >= 0 {
			simple = simple[i+1:]
		}
		if _, ok := declared[simple]; !ok {
			declared[simple] = yt.Name
		}
	}
	qualify := func(name string) string {
		if strings.ContainsRune(name, '.') {
			return name
		}
		if q, ok := declared[name]; ok {
			return q
		}
		return "java.lang." + name
	}

	added := 0
	for _, yt := range doc.Types {
		t, err := yt.typeInfo(qualify)
		if err != nil {
			return errors.Wrapf(err, "type %s", yt.Name)
		}
		if b.Add(t) {
			added++
		}
	}
	for _, p := range doc.Packages {
		b.AddPackage(p)
	}
	log.Debugf("loaded %d of %d types from yaml", added, len(doc.Types))
	return nil
}

func (yt *yamlType) typeInfo(qualify func(string) string) (*TypeInfo, error) {
	if yt.Name == "" {
		return nil, errors.New("missing name")
	}
	t := &TypeInfo{
		Name:     yt.Name,
		Kind:     yt.Kind,
		Abstract: yt.Abstract,
	}
	if t.Kind == KindInterface {
		t.Abstract = true
	}

	classVars, params, err := typeVarScope(yt.TypeParams, nil, qualify)
	if err != nil {
		return nil, err
	}
	t.TypeParams = params

	parse := func(s string, vars map[string]TypeRef) (TypeRef, error) {
		return ParseTypeString(s, vars, qualify)
	}

	switch {
	case yt.Super != "":
		s, err := parse(yt.Super, classVars)
		if err != nil {
			return nil, errors.Wrap(err, "super")
		}
		t.Super = &s
	case yt.Name != ObjectName && t.Kind != KindInterface && t.Kind != KindAnnotation:
		s := ClassRef(ObjectName)
		t.Super = &s
	}
	for _, i := range yt.Interfaces {
		ref, err := parse(i, classVars)
		if err != nil {
			return nil, errors.Wrap(err, "interfaces")
		}
		t.Interfaces = append(t.Interfaces, ref)
	}

	callable := func(yc yamlCallable, ctor bool) (Callable, error) {
		c := Callable{
			Name:      yc.Name,
			Owner:     t.Name,
			Static:    yc.Static,
			Synthetic: yc.Synthetic,
			Varargs:   yc.Varargs,
		}
		vars, tps, err := typeVarScope(yc.TypeParams, classVars, qualify)
		if err != nil {
			return c, err
		}
		c.TypeParams = tps
		for _, p := range yc.Params {
			ref, err := parse(p.Type, vars)
			if err != nil {
				return c, errors.Wrapf(err, "parameter %s", p.Name)
			}
			c.Params = append(c.Params, Param{Type: ref, Name: p.Name})
		}
		if ctor {
			c.Name = SimpleName(t.Name)
			return c, nil
		}
		ret := yc.Returns
		if ret == "" {
			ret = "void"
		}
		if c.Returns, err = parse(ret, vars); err != nil {
			return c, errors.Wrap(err, "returns")
		}
		return c, nil
	}

	for _, yc := range yt.Constructors {
		c, err := callable(yc, true)
		if err != nil {
			return nil, errors.Wrap(err, "constructor")
		}
		t.Constructors = append(t.Constructors, c)
	}
	for _, yc := range yt.Methods {
		c, err := callable(yc, false)
		if err != nil {
			return nil, errors.Wrapf(err, "method %s", yc.Name)
		}
		t.Methods = append(t.Methods, c)
	}
	for _, yf := range yt.Fields {
		ref, err := parse(yf.Type, classVars)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", yf.Name)
		}
		t.Fields = append(t.Fields, Field{Name: yf.Name, Owner: t.Name, Type: ref, Static: yf.Static})
	}
	return t, nil
}

// typeVarScope declares type parameters on top of an outer scope. Bounds
// may mention the variables being declared; those references carry no
// bounds of their own.
func typeVarScope(yps []yamlTypeParam, outer map[string]TypeRef, qualify func(string) string) (map[string]TypeRef, []TypeParam, error) {
	if len(yps) == 0 {
		return outer, nil, nil
	}
	shallow := make(map[string]TypeRef, len(outer)+len(yps))
	for k, v := range outer {
		shallow[k] = v
	}
	for _, yp := range yps {
		shallow[yp.Name] = TypeRef{Name: yp.Name, TypeVar: true}
	}

	scope := make(map[string]TypeRef, len(shallow))
	for k, v := range shallow {
		scope[k] = v
	}
	params := make([]TypeParam, 0, len(yps))
	for _, yp := range yps {
		tp := TypeParam{Name: yp.Name}
		for _, bound := range yp.Bounds {
			ref, err := ParseTypeString(bound, shallow, qualify)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "bound of %s", yp.Name)
			}
			tp.Bounds = append(tp.Bounds, ref)
		}
		scope[yp.Name] = TypeRef{Name: yp.Name, TypeVar: true, Bounds: tp.Bounds}
		params = append(params, tp)
	}
	return scope, params, nil
}

// ParseTypeString parses a Java source type such as "int", "byte[]",
// "java.util.Map<K, java.util.List<? extends V>>" or "T". Names found in
// vars are type variables. qualify, when set, expands unqualified class
// names.
func ParseTypeString(s string, vars map[string]TypeRef, qualify func(string) string) (TypeRef, error) {
	p := &typeStringParser{s: s, vars: vars, qualify: qualify}
	t, err := p.parseType()
	if err != nil {
		return TypeRef{}, err
	}
	p.space()
	if p.pos != len(p.s) {
		return TypeRef{}, errors.Errorf("type %q: unexpected %q", s, p.s[p.pos:])
	}
	return t, nil
}

type typeStringParser struct {
	s       string
	pos     int
	vars    map[string]TypeRef
	qualify func(string) string
}

func (p *typeStringParser) space() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeStringParser) accept(tok string) bool {
	p.space()
	if strings.HasPrefix(p.s[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *typeStringParser) parseType() (TypeRef, error) {
	p.space()
	if p.accept("?") {
		w := TypeRef{Name: "?", Wildcard: true}
		if p.accept("extends ") {
			b, err := p.parseType()
			if err != nil {
				return w, err
			}
			w.Bounds = []TypeRef{b}
		} else if p.accept("super ") {
			if _, err := p.parseType(); err != nil {
				return w, err
			}
		}
		return w, nil
	}

	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if strings.HasPrefix(p.s[p.pos:], "...") {
			break
		}
		if c == '.' || c == '$' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	name := p.s[start:p.pos]
	if name == "" {
		return TypeRef{}, errors.Errorf("type %q: expected name at %d", p.s, start)
	}

	var t TypeRef
	switch {
	case IsPrimitiveName(name) || name == "void":
		t = TypeRef{Name: name}
	default:
		if v, ok := p.vars[name]; ok {
			t = v
		} else {
			if p.qualify != nil {
				name = p.qualify(name)
			}
			t = ClassRef(name)
		}
	}

	if p.accept("<") {
		for {
			arg, err := p.parseType()
			if err != nil {
				return t, err
			}
			t.Args = append(t.Args, arg)
			if p.accept(",") {
				continue
			}
			if p.accept(">") {
				break
			}
			return t, errors.Errorf("type %q: unterminated type arguments", p.s)
		}
	}
	for p.accept("[]") {
		t.ArrayDepth++
	}
	if p.accept("...") {
		t.ArrayDepth++
	}
	return t, nil
}
