package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/gce/catalog"
	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/groovy"
)

// CandidateLineEncoder writes one tab-separated line per candidate:
// kind, entered offset and length, displayed text, value.
type CandidateLineEncoder struct {
	w io.Writer
}

func NewCandidateLineEncoder(w io.Writer) *CandidateLineEncoder {
	return &CandidateLineEncoder{w: w}
}

func (e *CandidateLineEncoder) Encode(cands []complete.Candidate) error {
	text, err := e.MarshalText(cands)
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *CandidateLineEncoder) MarshalText(cands []complete.Candidate) ([]byte, error) {
	var sb strings.Builder
	for _, c := range cands {
		fmt.Fprintf(&sb, "%s\t%d,%d\t%s\t%s\n", c.Kind, c.Entered[0], c.Entered[1], c.Displayed, c.Value)
	}
	return []byte(sb.String()), nil
}

// ErrorLineEncoder writes diagnostics the way compilers do:
// name:line:column: message.
type ErrorLineEncoder struct {
	w    io.Writer
	name string
}

func NewErrorLineEncoder(w io.Writer, name string) *ErrorLineEncoder {
	return &ErrorLineEncoder{w: w, name: name}
}

func (e *ErrorLineEncoder) Encode(errs []groovy.Error) error {
	text, err := e.MarshalText(errs)
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *ErrorLineEncoder) MarshalText(errs []groovy.Error) ([]byte, error) {
	var sb strings.Builder
	for _, err := range errs {
		fmt.Fprintf(&sb, "%s:%d:%d: %s\n", e.name, err.Span.Start.Line, err.Span.Start.Column, err.Message)
	}
	return []byte(sb.String()), nil
}

// CatalogLineEncoder writes one line per type: kind, name, modifiers and
// supertypes. With members, constructor, method and field lines follow each
// type.
type CatalogLineEncoder struct {
	w       io.Writer
	members bool
}

func NewCatalogLineEncoder(w io.Writer, members bool) *CatalogLineEncoder {
	return &CatalogLineEncoder{w: w, members: members}
}

func (e *CatalogLineEncoder) Encode(types []*catalog.TypeInfo) error {
	text, err := e.MarshalText(types)
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *CatalogLineEncoder) MarshalText(types []*catalog.TypeInfo) ([]byte, error) {
	var sb strings.Builder
	for _, t := range types {
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n", t.Kind, t.Name, typeModifiersStr(t), orDash(t.Supertypes()))
		if !e.members {
			continue
		}
		for _, c := range t.Constructors {
			fmt.Fprintf(&sb, "constructor\t%s\t%s\n", paramsStr(c.Params), callableModifiersStr(c))
		}
		for _, m := range t.Methods {
			fmt.Fprintf(&sb, "method\t%s\t%s\t%s\t%s\n", m.Name, m.Returns, paramsStr(m.Params), callableModifiersStr(m))
		}
		for _, f := range t.Fields {
			mods := "-"
			if f.Static {
				mods = "static"
			}
			fmt.Fprintf(&sb, "field\t%s\t%s\t%s\n", f.Name, f.Type, mods)
		}
	}
	return []byte(sb.String()), nil
}

func typeModifiersStr(t *catalog.TypeInfo) string {
	if t.Abstract {
		return "abstract"
	}
	return "-"
}

func callableModifiersStr(c catalog.Callable) string {
	var mods []string
	if c.Static {
		mods = append(mods, "static")
	}
	if c.Varargs {
		mods = append(mods, "varargs")
	}
	if c.Synthetic {
		mods = append(mods, "synthetic")
	}
	return orDash(mods)
}

func paramsStr(params []catalog.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func orDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}
