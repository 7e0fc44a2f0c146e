// Package workspace keeps the open scripts of an editor session and the
// engine that completes them.
package workspace

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/groovy"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("gce.workspace")

var ErrUnknownDocument = errors.New("unknown document")

// Handle holds the current engine. Swapping is atomic; a request that has
// already loaded an engine finishes with it.
type Handle struct {
	p atomic.Pointer[complete.Engine]
}

func NewHandle(e *complete.Engine) *Handle {
	h := &Handle{}
	h.p.Store(e)
	return h
}

func (h *Handle) Engine() *complete.Engine {
	return h.p.Load()
}

func (h *Handle) Swap(e *complete.Engine) {
	h.p.Store(e)
}

// Document is an open script and its latest analysis.
type Document struct {
	URI     string
	Name    string
	Text    string
	Version int32
	Unit    *groovy.Unit
}

type Workspace struct {
	handle *Handle
	mu     sync.RWMutex
	docs   map[string]*Document
}

func New(handle *Handle) *Workspace {
	return &Workspace{
		handle: handle,
		docs:   make(map[string]*Document),
	}
}

func (w *Workspace) Handle() *Handle {
	return w.handle
}

// Update stores a new version of a document and analyzes it.
func (w *Workspace) Update(uri string, text string, version int32) (*Document, error) {
	doc := &Document{URI: uri, Name: documentName(uri), Text: text, Version: version}
	unit, err := w.handle.Engine().Analyze(doc.Name, text)
	if err != nil {
		return nil, errors.Wrapf(err, "analyze %s", uri)
	}
	doc.Unit = unit

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.docs[uri]; ok && prev.Version > version {
		log.Debugf("%s: dropping stale version %d, have %d", uri, version, prev.Version)
		return prev, nil
	}
	w.docs[uri] = doc
	return doc, nil
}

func (w *Workspace) Close(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, uri)
}

func (w *Workspace) Document(uri string) (*Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.docs[uri]
	return doc, ok
}

// Documents returns the open documents ordered by URI.
func (w *Workspace) Documents() []*Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	docs := make([]*Document, 0, len(w.docs))
	for _, doc := range w.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// Reanalyze analyzes every open document again with the current engine.
func (w *Workspace) Reanalyze() []*Document {
	var out []*Document
	for _, doc := range w.Documents() {
		updated, err := w.Update(doc.URI, doc.Text, doc.Version)
		if err != nil {
			log.Errorf("%s", err)
			continue
		}
		out = append(out, updated)
	}
	return out
}

// Complete returns the candidates at a 0-based line and character of an
// open document.
func (w *Workspace) Complete(ctx context.Context, uri string, line, ch int, sticky complete.Sticky) ([]complete.Candidate, error) {
	doc, ok := w.Document(uri)
	if !ok {
		return nil, errors.Wrap(ErrUnknownDocument, uri)
	}
	return w.handle.Engine().Complete(ctx, complete.Request{
		Name:   doc.Name,
		Text:   doc.Text,
		Line:   line,
		Ch:     ch,
		Sticky: sticky,
	})
}
