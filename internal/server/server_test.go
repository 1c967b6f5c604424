package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/rustnav/internal/config"
)

type notification struct {
	method string
	params json.RawMessage
}

// harness drives a server through a real jsonrpc2 connection.
type harness struct {
	conn  jsonrpc2.Conn
	notes chan notification
	done  chan error
	logs  *observer.ObservedLogs
}

func start(t *testing.T) *harness {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		notes: make(chan notification, 256),
		done:  make(chan error, 1),
		logs:  logs,
	}
	go func() {
		h.done <- Run(ctx, serverSide, Options{
			Config:  config.Default(),
			Version: "test",
			Logger:  zap.New(core),
		})
	}()

	h.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	h.conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		h.notes <- notification{method: req.Method(), params: append(json.RawMessage(nil), req.Params()...)}
		return reply(ctx, nil, nil)
	})

	t.Cleanup(func() {
		cancel()
		_ = h.conn.Close()
	})
	return h
}

func (h *harness) call(t *testing.T, method string, params, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := h.conn.Call(ctx, method, params, result)
	return err
}

func (h *harness) notify(t *testing.T, method string, params any) {
	t.Helper()
	require.NoError(t, h.conn.Notify(context.Background(), method, params))
}

func (h *harness) initialize(t *testing.T, root string) {
	t.Helper()
	params := protocol.InitializeParams{}
	if root != "" {
		params.WorkspaceFolders = []protocol.WorkspaceFolder{{URI: string(uri.File(root)), Name: "test"}}
	}
	var result protocol.InitializeResult
	require.NoError(t, h.call(t, protocol.MethodInitialize, params, &result))
	h.notify(t, protocol.MethodInitialized, protocol.InitializedParams{})
}

// diagnosticsFor waits for a publishDiagnostics notification about u at
// version.
func (h *harness) diagnosticsFor(t *testing.T, u uri.URI, version uint32) protocol.PublishDiagnosticsParams {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case n := <-h.notes:
			if n.method != protocol.MethodTextDocumentPublishDiagnostics {
				continue
			}
			var params protocol.PublishDiagnosticsParams
			require.NoError(t, json.Unmarshal(n.params, &params))
			if params.URI == u && params.Version == version {
				return params
			}
		case <-timeout:
			t.Fatalf("no diagnostics for %s at version %d", u, version)
		}
	}
}

func requireCode(t *testing.T, err error, code jsonrpc2.Code) {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, code, rpcErr.Code)
}

func workspaceDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestInitialize(t *testing.T) {
	t.Parallel()
	h := start(t)

	var result protocol.InitializeResult
	require.NoError(t, h.call(t, protocol.MethodInitialize, protocol.InitializeParams{}, &result))

	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, Name, result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
	assert.Equal(t, true, result.Capabilities.CodeActionProvider)
	assert.Equal(t, true, result.Capabilities.DefinitionProvider)

	sync, ok := result.Capabilities.TextDocumentSync.(map[string]any)
	require.True(t, ok, "textDocumentSync = %#v", result.Capabilities.TextDocumentSync)
	assert.Equal(t, true, sync["openClose"])
	assert.EqualValues(t, protocol.TextDocumentSyncKindFull, sync["change"])
}

func TestRequestBeforeInitialize(t *testing.T) {
	t.Parallel()
	h := start(t)

	err := h.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{}, nil)
	requireCode(t, err, jsonrpc2.ServerNotInitialized)
}

func TestSecondInitializeRejected(t *testing.T) {
	t.Parallel()
	dir := workspaceDir(t, map[string]string{"lib.rs": "", "foo.rs": ""})
	fooURI := uri.File(filepath.Join(dir, "foo.rs"))

	h := start(t)
	h.initialize(t, dir)

	err := h.call(t, protocol.MethodInitialize, protocol.InitializeParams{}, nil)
	requireCode(t, err, jsonrpc2.InvalidRequest)

	// The session still runs against the first workspace.
	var actions []protocol.CodeAction
	require.NoError(t, h.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: fooURI},
	}, &actions))
	assert.Len(t, actions, 2)
}

func TestCodeActionRoundTrip(t *testing.T) {
	t.Parallel()
	dir := workspaceDir(t, map[string]string{
		"lib.rs": "",
		"foo.rs": "",
	})
	libURI := uri.File(filepath.Join(dir, "lib.rs"))
	fooURI := uri.File(filepath.Join(dir, "foo.rs"))

	h := start(t)
	h.initialize(t, dir)

	h.notify(t, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: fooURI, LanguageID: "rust", Version: 1, Text: "struct Foo;\n"},
	})

	params := protocol.CodeActionParams{TextDocument: protocol.TextDocumentIdentifier{URI: fooURI}}
	var actions []protocol.CodeAction
	require.NoError(t, h.call(t, protocol.MethodTextDocumentCodeAction, params, &actions))
	require.Len(t, actions, 2)
	assert.Equal(t, "Insert `mod foo;`", actions[0].Title)
	assert.Equal(t, "Insert `pub mod foo;`", actions[1].Title)

	edits := actions[0].Edit.Changes[libURI]
	require.Len(t, edits, 1)
	assert.Equal(t, "mod foo;\n", edits[0].NewText)
	assert.Equal(t, protocol.Range{}, edits[0].Range)

	h.notify(t, protocol.MethodTextDocumentDidChange, protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: libURI}, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "mod foo;\n"}},
	})

	actions = nil
	require.NoError(t, h.call(t, protocol.MethodTextDocumentCodeAction, params, &actions))
	assert.Empty(t, actions)
}

func TestDefinitionRequest(t *testing.T) {
	t.Parallel()
	dir := workspaceDir(t, map[string]string{
		"lib.rs":    "mod shapes;\n",
		"shapes.rs": "pub struct Circle;\n",
	})
	useURI := uri.File(filepath.Join(dir, "lib.rs"))

	h := start(t)
	h.initialize(t, dir)
	h.notify(t, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: useURI, Version: 1, Text: "mod shapes;\nfn r(c: Circle) {}\n"},
	})

	at := func(line, char uint32) protocol.DefinitionParams {
		return protocol.DefinitionParams{TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: useURI},
			Position:     protocol.Position{Line: line, Character: char},
		}}
	}

	var locs []protocol.Location
	require.NoError(t, h.call(t, protocol.MethodTextDocumentDefinition, at(1, 9), &locs))
	require.Len(t, locs, 1)
	assert.Equal(t, uri.File(filepath.Join(dir, "shapes.rs")), locs[0].URI)
	assert.Equal(t, uint32(0), locs[0].Range.Start.Line)

	err := h.call(t, protocol.MethodTextDocumentDefinition, at(1, 0), &locs)
	requireCode(t, err, codeRequestFailed)
}

func TestDiagnosticsNotification(t *testing.T) {
	t.Parallel()
	dir := workspaceDir(t, map[string]string{"main.rs": "fn main() {}\n"})
	mainURI := uri.File(filepath.Join(dir, "main.rs"))

	h := start(t)
	h.initialize(t, dir)
	h.notify(t, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: mainURI, Version: 3, Text: "fn main() {\n"},
	})

	params := h.diagnosticsFor(t, mainURI, 3)
	require.Len(t, params.Diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, params.Diagnostics[0].Severity)
	assert.Equal(t, uint32(0), params.Diagnostics[0].Range.Start.Line)
}

func TestUnknownMethods(t *testing.T) {
	t.Parallel()
	h := start(t)
	h.initialize(t, "")

	err := h.call(t, "workspace/frobnicate", nil, nil)
	requireCode(t, err, jsonrpc2.MethodNotFound)

	// Unknown notifications are ignored and the session continues.
	h.notify(t, "$/frobnicate", map[string]int{"x": 1})
	var actions []protocol.CodeAction
	err = h.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "untitled:Untitled-1"},
	}, &actions)
	requireCode(t, err, jsonrpc2.InvalidParams)
}

func TestMalformedNotificationDropped(t *testing.T) {
	t.Parallel()
	h := start(t)
	h.initialize(t, "")

	h.notify(t, protocol.MethodTextDocumentDidOpen, "not an object")

	err := h.call(t, protocol.MethodTextDocumentDefinition, "also not an object", nil)
	requireCode(t, err, jsonrpc2.InvalidParams)

	dropped := h.logs.FilterMessage("dropping malformed notification").Len()
	assert.Equal(t, 1, dropped)
}

func TestShutdownExit(t *testing.T) {
	t.Parallel()
	h := start(t)
	h.initialize(t, "")

	require.NoError(t, h.call(t, protocol.MethodShutdown, nil, nil))
	err := h.call(t, protocol.MethodTextDocumentCodeAction, protocol.CodeActionParams{}, nil)
	requireCode(t, err, jsonrpc2.InvalidRequest)

	h.notify(t, protocol.MethodExit, nil)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after exit")
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	t.Parallel()
	h := start(t)
	h.initialize(t, "")

	h.notify(t, protocol.MethodExit, nil)
	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, ErrExitWithoutShutdown)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop after exit")
	}
}
