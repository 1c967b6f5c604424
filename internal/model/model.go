// Package model defines core data structures for rustnav.
package model

import (
	"strings"

	"go.lsp.dev/protocol"

	"github.com/phobologic/rustnav/internal/fileid"
)

// ItemKind is the syntactic kind of a scanned item.
type ItemKind string

const (
	Module ItemKind = "module"
	Struct ItemKind = "struct"
	Enum   ItemKind = "enum"
	Union  ItemKind = "union"
)

// IsType reports whether items of this kind go into the type table.
func (k ItemKind) IsType() bool {
	return k == Struct || k == Enum || k == Union
}

// ModulePath names a module scope. Segments are reserved for nested scopes
// and are always empty today: every symbol lives directly under Crate.
type ModulePath struct {
	Crate    string
	Segments []string
}

func (p ModulePath) String() string {
	return strings.Join(append([]string{p.Crate}, p.Segments...), "::")
}

// ItemPath is the key of the global type table.
type ItemPath struct {
	Module ModulePath
	Name   string
}

// Key returns the comparable form of the path, used as the map key.
func (p ItemPath) Key() string {
	return p.Module.String() + "::" + p.Name
}

func (p ItemPath) String() string { return p.Key() }

// ModuleDecl is a `mod name;` or `mod name { ... }` statement.
type ModuleDecl struct {
	Name   string
	Range  protocol.Range
	// Nested is set when the statement sits inside an inline module body,
	// so it declares a grandchild rather than a child of the file.
	Nested bool
}

// TypeDef is a struct, enum or union definition.
type TypeDef struct {
	File  fileid.ID
	Range protocol.Range
	Name  string
	Kind  ItemKind
}

// FileSummary is one row of the workspace map.
type FileSummary struct {
	Path    string
	Version int32
	Open    bool
	Parent  string // empty when the file has no parent module
	Modules []string
	Types   []string
	Errors  int
	// Rank is the file's PageRank score in the module tree.
	Rank float64
}

// ModuleEdge links a file to its resolved parent module file.
// Declared reports whether the parent contains a declaration for the child.
type ModuleEdge struct {
	Child    string
	Parent   string
	Name     string
	Declared bool
}

// Symbol is one row of the workspace map's type table.
type Symbol struct {
	Path string // Item path key
	Name string
	Kind ItemKind
	File string
	Line int // 1-based
}

// WorkspaceMap is a snapshot of the analyzed workspace, ready for
// serialization.
type WorkspaceMap struct {
	Name    string
	Root    string
	Files   []FileSummary
	Symbols []Symbol
	Edges   []ModuleEdge
	Orphans []string // files with no parent that are not crate roots
}
