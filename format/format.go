// Package format renders parse trees, completion candidates, diagnostics
// and catalog listings for the command line and the HTTP API.
package format

import (
	"strings"

	"github.com/pkg/errors"
)

type Format string

const (
	JSON Format = "json"
	Line Format = "line"
	Tree Format = "tree"
)

// ParseFormat accepts one of the allowed formats, case-insensitively.
func ParseFormat(s string, allowed ...Format) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", errors.Errorf("unknown format %q: want one of %s", s, strings.Join(names, ", "))
}
