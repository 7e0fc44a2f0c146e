package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/dhamidi/gce/complete"
	"github.com/dhamidi/gce/groovy"
	"github.com/dhamidi/gce/project"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const lsName = "gce"

// LSPServer speaks the language server protocol over stdio: diagnostics
// for open Groovy scripts and completion at the cursor.
type LSPServer struct {
	ws      *Workspace
	handler protocol.Handler
	server  *server.Server
	version string
	opts    []complete.Option
	watch   bool

	mu     sync.Mutex
	notify glsp.NotifyFunc
	stop   context.CancelFunc
}

type LSPOption func(*LSPServer)

// WithEngineOptions are applied when the project engine is built.
func WithEngineOptions(opts ...complete.Option) LSPOption {
	return func(ls *LSPServer) {
		ls.opts = append(ls.opts, opts...)
	}
}

// WithWatch reloads the catalog when the project configuration or catalog
// files change.
func WithWatch(enabled bool) LSPOption {
	return func(ls *LSPServer) {
		ls.watch = enabled
	}
}

// NewLSPServer serves ws. Until the client names a root directory, ws
// completes with whatever engine its handle holds.
func NewLSPServer(version string, ws *Workspace, opts ...LSPOption) *LSPServer {
	ls := &LSPServer{
		ws:      ws,
		version: version,
	}
	for _, opt := range opts {
		opt(ls)
	}

	ls.handler = protocol.Handler{
		Initialize:             ls.initialize,
		Initialized:            ls.initialized,
		Shutdown:               ls.shutdown,
		SetTrace:               ls.setTrace,
		TextDocumentDidOpen:    ls.textDocumentDidOpen,
		TextDocumentDidChange:  ls.textDocumentDidChange,
		TextDocumentDidClose:   ls.textDocumentDidClose,
		TextDocumentDidSave:    ls.textDocumentDidSave,
		TextDocumentCompletion: ls.textDocumentCompletion,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *LSPServer) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *LSPServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	ls.setNotify(ctx.Notify)

	rootDir := ""
	if params.RootPath != nil && *params.RootPath != "" {
		rootDir = *params.RootPath
	} else if params.RootURI != nil && *params.RootURI != "" {
		if path, err := uriToPath(*params.RootURI); err == nil {
			rootDir = path
		}
	}
	if rootDir != "" {
		ls.loadProject(rootDir)
	}

	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", "("},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

// loadProject replaces the engine with one built from the project's
// gce.toml. On failure the current engine stays.
func (ls *LSPServer) loadProject(rootDir string) {
	p, err := project.LoadFrom(rootDir)
	if err != nil {
		log.Errorf("load project %s: %s", rootDir, err)
		return
	}
	build := func() (*complete.Engine, error) {
		p, err := project.LoadFrom(rootDir)
		if err != nil {
			return nil, err
		}
		return p.NewEngine(ls.opts...)
	}
	e, err := build()
	if err != nil {
		log.Errorf("build catalog for %s: %s", rootDir, err)
		return
	}
	ls.ws.Handle().Swap(e)
	log.Infof("project %s loaded", p.RootDir)

	if !ls.watch {
		return
	}
	w, err := NewWatcher(ls.ws.Handle(), build, p.WatchPaths()...)
	if err != nil {
		log.Errorf("watch %s: %s", rootDir, err)
		return
	}
	w.OnReload = func(*complete.Engine) {
		for _, doc := range ls.ws.Reanalyze() {
			ls.publishDiagnostics(doc)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	ls.mu.Lock()
	ls.stop = cancel
	ls.mu.Unlock()
	go func() {
		if err := w.Run(ctx); err != nil {
			log.Errorf("watcher: %s", err)
		}
	}()
}

func (ls *LSPServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (ls *LSPServer) shutdown(ctx *glsp.Context) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.stop != nil {
		ls.stop()
		ls.stop = nil
	}
	return nil
}

func (ls *LSPServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *LSPServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ls.setNotify(ctx.Notify)
	return ls.update(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
}

func (ls *LSPServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	ls.setNotify(ctx.Notify)
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	if textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
		return ls.update(params.TextDocument.URI, textChange.Text, params.TextDocument.Version)
	}
	log.Warningf("%s: ignoring incremental change", params.TextDocument.URI)
	return nil
}

func (ls *LSPServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	ls.ws.Close(params.TextDocument.URI)
	if ctx.Notify != nil {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		})
	}
	return nil
}

func (ls *LSPServer) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	ls.setNotify(ctx.Notify)
	if params.Text == nil {
		return nil
	}
	var version int32
	if doc, ok := ls.ws.Document(params.TextDocument.URI); ok {
		version = doc.Version
	}
	return ls.update(params.TextDocument.URI, *params.Text, version)
}

func (ls *LSPServer) update(uri, text string, version int32) error {
	doc, err := ls.ws.Update(uri, text, version)
	if err != nil {
		return err
	}
	ls.publishDiagnostics(doc)
	return nil
}

func (ls *LSPServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	line := int(params.Position.Line)
	ch := int(params.Position.Character)

	cands, err := ls.ws.Complete(context.Background(), params.TextDocument.URI, line, ch, complete.StickyBefore)
	if err != nil {
		log.Debugf("completion: %s", err)
		return nil, nil
	}
	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        completionItems(cands, params.Position),
	}, nil
}

// completionItems turns candidates into items whose edit replaces the hint
// already typed before pos.
func completionItems(cands []complete.Candidate, pos protocol.Position) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(cands))
	for i, c := range cands {
		kind := toProtocolKind(c.Kind)
		detail := c.Kind
		sortText := sortKey(i)
		start := pos
		if typed := protocol.UInteger(c.Entered[1]); typed <= start.Character {
			start.Character -= typed
		}
		items = append(items, protocol.CompletionItem{
			Label:    c.Displayed,
			Kind:     &kind,
			Detail:   &detail,
			SortText: &sortText,
			TextEdit: protocol.TextEdit{
				Range:   protocol.Range{Start: start, End: pos},
				NewText: c.Value,
			},
		})
	}
	return items
}

// sortKey keeps the engine's order in clients that sort by label.
func sortKey(i int) string {
	return fmt.Sprintf("%05d", i)
}

func toProtocolKind(kind string) protocol.CompletionItemKind {
	switch kind {
	case complete.KindConstructor:
		return protocol.CompletionItemKindConstructor
	case complete.KindMethod, complete.KindImportMethod:
		return protocol.CompletionItemKindMethod
	case complete.KindField:
		return protocol.CompletionItemKindField
	case complete.KindImportClass:
		return protocol.CompletionItemKindClass
	case complete.KindImportPackage:
		return protocol.CompletionItemKindModule
	default:
		return protocol.CompletionItemKindText
	}
}

func (ls *LSPServer) setNotify(notify glsp.NotifyFunc) {
	if notify == nil {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.notify = notify
}

func (ls *LSPServer) publishDiagnostics(doc *Document) {
	ls.mu.Lock()
	notify := ls.notify
	ls.mu.Unlock()
	if notify == nil {
		return
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diagnostics(doc.Unit.Errors),
	})
}

// diagnostics converts 1-based spans to 0-based protocol ranges.
func diagnostics(errs []groovy.Error) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(errs))
	severity := protocol.DiagnosticSeverityError
	source := lsName
	for _, e := range errs {
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: zeroBased(e.Span.Start.Line), Character: zeroBased(e.Span.Start.Column)},
				End:   protocol.Position{Line: zeroBased(e.Span.End.Line), Character: zeroBased(e.Span.End.Column)},
			},
			Severity: &severity,
			Source:   &source,
			Message:  e.Message,
		})
	}
	return out
}

func zeroBased(n int) protocol.UInteger {
	if n <= 0 {
		return 0
	}
	return protocol.UInteger(n - 1)
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
