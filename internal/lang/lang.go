// Package lang holds the tree-sitter grammar and filesystem conventions for
// the analyzed language (Rust).
package lang

import (
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Filesystem conventions that decide module parentage.
const (
	// Extension is the source file extension the walk picks up.
	Extension = ".rs"
	// LibRoot is the library crate root; it has no parent module.
	LibRoot = "lib.rs"
	// BinRoot is the binary crate root; it has no parent module.
	BinRoot = "main.rs"
	// DirModule names the file that stands for its containing directory.
	DirModule = "mod.rs"
	// CacheMarker marks a directory tree the walk must skip.
	CacheMarker = "CACHEDIR.TAG"
	// VCSDir is never descended into.
	VCSDir = ".git"
)

// Crate is the only module scope symbols are keyed under.
const Crate = "crate"

// Language returns the Rust tree-sitter grammar.
func Language() *sitter.Language {
	return rust.GetLanguage()
}

// NewParser creates a fresh tree-sitter parser for Rust.
// Parsers are not safe for concurrent use.
func NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(Language())
	return p
}

// IsSource reports whether name carries the analyzed-language extension.
func IsSource(name string) bool {
	return filepath.Ext(name) == Extension
}

// IsCrateRoot reports whether the file name is a crate entry point.
func IsCrateRoot(name string) bool {
	return name == LibRoot || name == BinRoot
}

// ModuleName returns the module name a file contributes to its parent:
// the directory name for a directory module, the file stem otherwise.
func ModuleName(path string) string {
	base := filepath.Base(path)
	if base == DirModule {
		return filepath.Base(filepath.Dir(path))
	}
	return base[:len(base)-len(filepath.Ext(base))]
}
