package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/groovy/parser"
)

const statusOK = "ok"

// HintsDocument is the response body of a completion request.
type HintsDocument struct {
	Status string               `json:"status"`
	Hints  []complete.Candidate `json:"hints"`
}

// ErrorsDocument is the response body of a validation request.
type ErrorsDocument struct {
	Status string       `json:"status"`
	Errors []ErrorEntry `json:"errors"`
}

// ErrorEntry positions are 1-based; the end column is one past the last
// character.
type ErrorEntry struct {
	SLine   int    `json:"sline"`
	ELine   int    `json:"eline"`
	SColumn int    `json:"scolumn"`
	EColumn int    `json:"ecolumn"`
	Message string `json:"message"`
}

func Hints(cands []complete.Candidate) HintsDocument {
	if cands == nil {
		cands = []complete.Candidate{}
	}
	return HintsDocument{Status: statusOK, Hints: cands}
}

func Errors(errs []groovy.Error) ErrorsDocument {
	doc := ErrorsDocument{Status: statusOK, Errors: make([]ErrorEntry, 0, len(errs))}
	for _, e := range errs {
		doc.Errors = append(doc.Errors, errorEntry(e.Span, e.Message))
	}
	return doc
}

func errorEntry(span parser.Span, message string) ErrorEntry {
	return ErrorEntry{
		SLine:   span.Start.Line,
		ELine:   span.End.Line,
		SColumn: span.Start.Column,
		EColumn: span.End.Column,
		Message: message,
	}
}

// JSONEncoder writes documents as indented JSON.
type JSONEncoder struct {
	w io.Writer
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(doc any) error {
	text, err := e.MarshalText(doc)
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONEncoder) MarshalText(doc any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
