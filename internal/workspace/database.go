// Package workspace holds the live model of a Rust workspace: per-file
// analysis records, the global type table, and the update pipeline that
// keeps both consistent as documents change.
//
// A Database is owned by a single goroutine. Every mutation runs to
// completion inside Update; queries see only committed state, except for
// the lazy loads that module resolution performs.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lineindex"
	"github.com/phobologic/rustnav/internal/model"
	"github.com/phobologic/rustnav/internal/parse"
)

var (
	// ErrNotLoaded is returned by Update for a file that has no record.
	ErrNotLoaded = errors.New("file not loaded")
	// ErrInconsistent reports a record that vanished mid-update.
	ErrInconsistent = errors.New("workspace database inconsistent")
)

// Client receives the editor-facing output of the database.
// protocol.Client satisfies it.
type Client interface {
	PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error
	LogMessage(ctx context.Context, params *protocol.LogMessageParams) error
}

// FileData is the analysis record of one file.
type FileData struct {
	// Version is the editor's document version, 0 for files only read from
	// disk.
	Version int32
	Index   *lineindex.Index
	IsOpen  bool
	Modules []model.ModuleDecl
	// Parent is the resolved parent module file, nil for crate roots and
	// orphans.
	Parent *fileid.ID
	Tree   *parse.Tree
	// Types lists the type table keys this file inserted on its last scan.
	Types []model.ItemPath
	// Diagnostics is the list last published for this file.
	Diagnostics []protocol.Diagnostic
}

// Declares reports whether the file declares a child module named name at
// its top level.
func (fd *FileData) Declares(name string) bool {
	for _, m := range fd.Modules {
		if !m.Nested && m.Name == name {
			return true
		}
	}
	return false
}

// lastDeclaration returns the last top-level module declaration.
func (fd *FileData) lastDeclaration() (model.ModuleDecl, bool) {
	for i := len(fd.Modules) - 1; i >= 0; i-- {
		if !fd.Modules[i].Nested {
			return fd.Modules[i], true
		}
	}
	return model.ModuleDecl{}, false
}

func newFileData() *FileData {
	return &FileData{Index: lineindex.New("")}
}

// Database is the workspace store.
type Database struct {
	files    map[fileid.ID]*FileData
	typeDefs map[string]model.TypeDef // keyed by ItemPath.Key()

	parser   *parse.Parser
	client   Client
	logger   *zap.Logger
	readFile func(string) ([]byte, error)

	// loadTrace collects identities loaded while a resolution is running.
	loadTrace *[]fileid.ID
}

// New creates an empty database reporting to client. A nil logger
// discards process logs.
func New(client Client, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		files:    make(map[fileid.ID]*FileData),
		typeDefs: make(map[string]model.TypeDef),
		parser:   parse.NewParser(),
		client:   client,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// File returns the committed record for id without loading it.
func (db *Database) File(id fileid.ID) (*FileData, bool) {
	fd, ok := db.files[id]
	return fd, ok
}

// EnsureLoaded returns the record for id, reading the file from disk first
// if the database has never seen it. It reports false when the file cannot
// be read.
func (db *Database) EnsureLoaded(ctx context.Context, id fileid.ID) (*FileData, bool) {
	if fd, ok := db.files[id]; ok {
		return fd, true
	}
	if _, err := db.LoadIfAbsent(ctx, id); err != nil {
		db.logger.Debug("load failed", zap.String("path", id.Path()), zap.Error(err))
		return nil, false
	}
	fd, ok := db.files[id]
	return fd, ok
}

// LoadIfAbsent reads id from disk and runs the update pipeline on it, but
// only when no record exists yet; a file reached through several
// resolution paths is analyzed once. It reports whether a record was
// created.
func (db *Database) LoadIfAbsent(ctx context.Context, id fileid.ID) (bool, error) {
	if _, ok := db.files[id]; ok {
		return false, nil
	}
	src, err := db.readFile(id.Path())
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", id.Path(), err)
	}

	fd := newFileData()
	db.files[id] = fd
	if db.loadTrace != nil {
		*db.loadTrace = append(*db.loadTrace, id)
	}
	if err := db.Update(ctx, id, fd.Version, string(src)); err != nil {
		return true, err
	}
	return true, nil
}

// Open records that the editor opened id with the given text, creating the
// record if needed, and runs the update pipeline.
func (db *Database) Open(ctx context.Context, id fileid.ID, version int32, text string) error {
	fd, ok := db.files[id]
	if !ok {
		fd = newFileData()
		db.files[id] = fd
	}
	fd.IsOpen = true
	return db.Update(ctx, id, version, text)
}

// Close clears the open flag. The record and everything it contributed stay
// queryable. It reports false for unknown files.
func (db *Database) Close(id fileid.ID) bool {
	fd, ok := db.files[id]
	if !ok {
		return false
	}
	fd.IsOpen = false
	return true
}

// Update recomputes everything derived from the text of id: line index,
// syntax tree, diagnostics, parent module, module declarations and type
// definitions. Earlier contributions of the file are discarded, never
// merged.
func (db *Database) Update(ctx context.Context, id fileid.ID, version int32, text string) error {
	fd, ok := db.files[id]
	if !ok {
		return fmt.Errorf("%s: %w", id.Path(), ErrNotLoaded)
	}

	index := lineindex.New(text)
	tree, err := db.parser.Parse(ctx, []byte(text))
	if err != nil {
		return fmt.Errorf("updating %s: %w", id.Path(), err)
	}

	diagnostics := fileDiagnostics(tree, index)
	db.publishDiagnostics(ctx, id, version, diagnostics)

	db.dropTypes(id, fd)
	db.refreshParent(ctx, id)
	db.scanFile(ctx, id, tree, index)

	fd, ok = db.files[id]
	if !ok {
		err := fmt.Errorf("record for %s missing at commit: %w", id.Path(), ErrInconsistent)
		db.logError(ctx, err.Error())
		return err
	}
	fd.Version = version
	fd.Index = index
	fd.Tree = tree
	fd.Diagnostics = diagnostics
	return nil
}

// FileIDs returns every known file, sorted by path.
func (db *Database) FileIDs() []fileid.ID {
	ids := make([]fileid.ID, 0, len(db.files))
	for id := range db.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Path() < ids[j].Path() })
	return ids
}

// TypeDef looks up a type definition by item path.
func (db *Database) TypeDef(path model.ItemPath) (model.TypeDef, bool) {
	def, ok := db.typeDefs[path.Key()]
	return def, ok
}

// TypeDefs returns every type definition, sorted by name then file.
func (db *Database) TypeDefs() []model.TypeDef {
	defs := make([]model.TypeDef, 0, len(db.typeDefs))
	for _, def := range db.typeDefs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].File.Path() < defs[j].File.Path()
	})
	return defs
}

func (db *Database) logInfo(ctx context.Context, msg string) {
	db.logger.Info(msg)
	db.sendLog(ctx, protocol.MessageTypeInfo, msg)
}

func (db *Database) logWarning(ctx context.Context, msg string) {
	db.logger.Warn(msg)
	db.sendLog(ctx, protocol.MessageTypeWarning, msg)
}

func (db *Database) logError(ctx context.Context, msg string) {
	db.logger.Error(msg)
	db.sendLog(ctx, protocol.MessageTypeError, msg)
}

// sendLog is best effort: delivery failures are only noted locally.
func (db *Database) sendLog(ctx context.Context, typ protocol.MessageType, msg string) {
	if db.client == nil {
		return
	}
	if err := db.client.LogMessage(ctx, &protocol.LogMessageParams{Type: typ, Message: msg}); err != nil {
		db.logger.Debug("log message not delivered", zap.Error(err))
	}
}
