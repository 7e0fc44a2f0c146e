package catalog

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed jdk.yaml
var jdkYAML []byte

var (
	builtinOnce sync.Once
	builtin     *Catalog
)

// Builtin returns the embedded JDK subset: the commonly scripted parts of
// java.lang, java.util, java.util.concurrent, java.io, java.math, java.net
// and groovy.lang. It is built on first use and shared.
func Builtin() *Catalog {
	builtinOnce.Do(func() {
		b := NewBuilder()
		if err := b.AddBuiltin(); err != nil {
			panic(err)
		}
		builtin = b.Build()
	})
	return builtin
}

// AddBuiltin adds the embedded JDK subset, subject to the builder's
// package filter.
func (b *Builder) AddBuiltin() error {
	return b.LoadYAML(bytes.NewReader(jdkYAML))
}
