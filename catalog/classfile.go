package catalog

import (
	"archive/zip"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhamidi/gce/classfile"
	"github.com/pkg/errors"
)

// TypeInfoFromClassFile converts a decoded class file. Generic signatures
// are preferred over erased descriptors when present. It returns nil for
// anonymous classes, module descriptors and non-public types.
func TypeInfoFromClassFile(cf *classfile.ClassFile) *TypeInfo {
	if cf.IsAnonymous() || cf.Access.IsModule() || !cf.Access.IsPublic() {
		return nil
	}
	if strings.HasSuffix(cf.Name, "module-info") || strings.HasSuffix(cf.Name, "package-info") {
		return nil
	}

	t := &TypeInfo{
		Name:     cf.SourceName(),
		Kind:     kindFromAccess(cf.Access),
		Abstract: cf.Access.IsAbstract(),
	}

	var classVars map[string]TypeRef
	if sig, err := classfile.ParseClassSignature(cf.Signature); cf.Signature != "" && err == nil {
		classVars, t.TypeParams = sigTypeVarScope(sig.TypeParams, nil)
		if cf.SuperName != "" {
			s := refFromSig(sig.Super, classVars)
			t.Super = &s
		}
		for _, i := range sig.Interfaces {
			t.Interfaces = append(t.Interfaces, refFromSig(i, classVars))
		}
	} else {
		if cf.SuperName != "" {
			s := ClassRef(classfile.InternalToSourceName(cf.SuperName))
			t.Super = &s
		}
		for _, i := range cf.Interfaces {
			t.Interfaces = append(t.Interfaces, ClassRef(classfile.InternalToSourceName(i)))
		}
	}

	for i := range cf.Fields {
		f := &cf.Fields[i]
		if !visible(f.Access) || f.Access.IsSynthetic() {
			continue
		}
		field := Field{Name: f.Name, Owner: t.Name, Static: f.Access.IsStatic()}
		if sig, err := classfile.ParseFieldSignature(f.Signature); f.Signature != "" && err == nil {
			field.Type = refFromSig(*sig, classVars)
		} else if ft := classfile.ParseFieldDescriptor(f.Descriptor); ft != nil {
			field.Type = refFromFieldType(ft)
		} else {
			continue
		}
		t.Fields = append(t.Fields, field)
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		if !visible(m.Access) || m.IsStaticInitializer() {
			continue
		}
		c, ok := callableFromMember(t, m, classVars)
		if !ok {
			continue
		}
		if m.IsConstructor() {
			t.Constructors = append(t.Constructors, c)
		} else {
			t.Methods = append(t.Methods, c)
		}
	}
	return t
}

func visible(a classfile.AccessFlags) bool {
	return a.IsPublic() || a.IsProtected()
}

func kindFromAccess(a classfile.AccessFlags) Kind {
	switch {
	case a.IsAnnotation():
		return KindAnnotation
	case a.IsEnum():
		return KindEnum
	case a.IsInterface():
		return KindInterface
	}
	return KindClass
}

func callableFromMember(owner *TypeInfo, m *classfile.Member, classVars map[string]TypeRef) (Callable, bool) {
	c := Callable{
		Name:      m.Name,
		Owner:     owner.Name,
		Static:    m.Access.IsStatic(),
		Synthetic: m.Access.IsSynthetic() || m.Access.IsBridge(),
		Varargs:   m.Access.IsVarargs(),
	}
	if m.IsConstructor() {
		c.Name = SimpleName(owner.Name)
	}

	md := classfile.ParseMethodDescriptor(m.Descriptor)
	if md == nil {
		return c, false
	}
	var params []TypeRef
	ret := TypeRef{Name: "void"}
	if md.ReturnType != nil {
		ret = refFromFieldType(md.ReturnType)
	}
	for i := range md.Parameters {
		params = append(params, refFromFieldType(&md.Parameters[i]))
	}

	// Signatures of inner class constructors may omit the synthetic outer
	// parameter, so they are only trusted when the counts agree.
	if sig, err := classfile.ParseMethodSignature(m.Signature); m.Signature != "" && err == nil && len(sig.Params) == len(params) {
		var vars map[string]TypeRef
		vars, c.TypeParams = sigTypeVarScope(sig.TypeParams, classVars)
		for i, p := range sig.Params {
			params[i] = refFromSig(p, vars)
		}
		if sig.Return != nil {
			ret = refFromSig(*sig.Return, vars)
		}
	}

	for i, p := range params {
		param := Param{Type: p}
		if i < len(m.ParamNames) {
			param.Name = m.ParamNames[i]
		}
		c.Params = append(c.Params, param)
	}
	if !m.IsConstructor() {
		c.Returns = ret
	}
	return c, true
}

func refFromFieldType(ft *classfile.FieldType) TypeRef {
	name := ft.BaseType
	if name == "" {
		name = classfile.InternalToSourceName(ft.ClassName)
	}
	return TypeRef{Name: name, ArrayDepth: ft.ArrayDepth}
}

func refFromSig(s classfile.TypeSig, vars map[string]TypeRef) TypeRef {
	switch s.Kind {
	case classfile.SigArray:
		elem := refFromSig(*s.Elem, vars)
		elem.ArrayDepth++
		return elem
	case classfile.SigTypeVar:
		if v, ok := vars[s.Name]; ok {
			return v
		}
		return TypeRef{Name: s.Name, TypeVar: true}
	case classfile.SigWildcard:
		w := TypeRef{Name: "?", Wildcard: true}
		if s.Bound != nil {
			w.Bounds = []TypeRef{refFromSig(*s.Bound, vars)}
		}
		return w
	case classfile.SigClass:
		t := ClassRef(s.Name)
		for _, a := range s.Args {
			t.Args = append(t.Args, refFromSig(a, vars))
		}
		return t
	}
	return TypeRef{Name: s.Name}
}

func sigTypeVarScope(tps []classfile.TypeParamSig, outer map[string]TypeRef) (map[string]TypeRef, []TypeParam) {
	if len(tps) == 0 {
		return outer, nil
	}
	shallow := make(map[string]TypeRef, len(outer)+len(tps))
	for k, v := range outer {
		shallow[k] = v
	}
	for _, tp := range tps {
		shallow[tp.Name] = TypeRef{Name: tp.Name, TypeVar: true}
	}
	scope := make(map[string]TypeRef, len(shallow))
	for k, v := range shallow {
		scope[k] = v
	}
	params := make([]TypeParam, 0, len(tps))
	for _, tp := range tps {
		param := TypeParam{Name: tp.Name}
		if tp.ClassBound != nil {
			param.Bounds = append(param.Bounds, refFromSig(*tp.ClassBound, shallow))
		}
		for _, b := range tp.InterfaceBounds {
			param.Bounds = append(param.Bounds, refFromSig(b, shallow))
		}
		scope[tp.Name] = TypeRef{Name: tp.Name, TypeVar: true, Bounds: param.Bounds}
		params = append(params, param)
	}
	return scope, params
}

// LoadClassFile adds the type in a single class file.
func (b *Builder) LoadClassFile(path string) error {
	cf, err := classfile.ParseFile(path)
	if err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	if t := TypeInfoFromClassFile(cf); t != nil {
		b.Add(t)
	}
	return nil
}

// LoadJar adds every class in a jar. Entries that fail to decode are
// skipped and logged.
func (b *Builder) LoadJar(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, "open jar %s", path)
	}
	defer zr.Close()

	added := 0
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".class") || strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			log.Warningf("%s!%s: %s", path, f.Name, err)
			continue
		}
		cf, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			log.Warningf("%s!%s: %s", path, f.Name, err)
			continue
		}
		if t := TypeInfoFromClassFile(cf); t != nil && b.Add(t) {
			added++
		}
	}
	log.Infof("loaded %d types from %s", added, path)
	return nil
}

// LoadDir walks a directory for class files, jars and yaml catalogs.
func (b *Builder) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".class":
			if err := b.LoadClassFile(path); err != nil {
				log.Warningf("%s", err)
			}
		case ".jar", ".yaml", ".yml":
			return b.LoadPath(path)
		}
		return nil
	})
}

// LoadPath loads a file or directory by kind. Glob patterns are expanded;
// a pattern that matches nothing is ErrNotFound.
func (b *Builder) LoadPath(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrapf(err, "bad pattern %s", pattern)
	}
	if len(matches) == 0 {
		return errors.Wrap(ErrNotFound, pattern)
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return errors.Wrapf(err, "stat %s", path)
		}
		switch {
		case info.IsDir():
			err = b.LoadDir(path)
		case filepath.Ext(path) == ".jar":
			err = b.LoadJar(path)
		case filepath.Ext(path) == ".class":
			err = b.LoadClassFile(path)
		case filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml":
			err = b.loadYAMLFile(path)
		default:
			err = errors.Errorf("%s: unknown catalog file type", path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) loadYAMLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return errors.Wrapf(b.LoadYAML(f), "load %s", path)
}
