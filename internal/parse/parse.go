// Package parse wraps the tree-sitter Rust parser: it produces syntax trees
// with their syntax errors and scans trees for module declarations and type
// definitions.
package parse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/rustnav/internal/lang"
	"github.com/phobologic/rustnav/internal/model"
)

// itemKinds maps tree-sitter node types to the items the scanner records.
var itemKinds = map[string]model.ItemKind{
	"mod_item":    model.Module,
	"struct_item": model.Struct,
	"enum_item":   model.Enum,
	"union_item":  model.Union,
}

// SyntaxError is a parse error over the byte range [Start, End).
type SyntaxError struct {
	Start   uint32
	End     uint32
	Message string
}

func (e SyntaxError) Error() string { return e.Message }

// Item is a module declaration or type definition found by Scan. Start and
// End delimit the whole item, not just its name.
type Item struct {
	Kind   model.ItemKind
	Name   string
	Start  uint32
	End    uint32
	// Nested is set for items inside an inline `mod name { ... }` body.
	Nested bool
}

// Parser parses Rust source. It is not safe for concurrent use.
type Parser struct {
	p *sitter.Parser
}

// NewParser creates a parser for the analyzed language.
func NewParser() *Parser {
	return &Parser{p: lang.NewParser()}
}

// Parse parses src. Syntax errors never fail the parse; they are reported
// on the returned tree.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	t := &Tree{tree: tree, src: src}
	t.Errors = collectErrors(tree.RootNode(), nil)
	return t, nil
}

// Tree is a parsed source file.
type Tree struct {
	tree   *sitter.Tree
	src    []byte
	Errors []SyntaxError
}

// Root returns the root node of the tree.
func (t *Tree) Root() *sitter.Node { return t.tree.RootNode() }

// Source returns the text the tree was parsed from.
func (t *Tree) Source() []byte { return t.src }

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	return string(t.src[n.StartByte():n.EndByte()])
}

// Covering returns the smallest non-empty node whose range contains
// [start, end). For an empty range, a node containing the offset strictly
// inside it wins over one that merely ends there.
func (t *Tree) Covering(start, end uint32) *sitter.Node {
	n := t.Root()
	for {
		next := coveringChild(n, start, end)
		if next == nil {
			return n
		}
		n = next
	}
}

func coveringChild(n *sitter.Node, start, end uint32) *sitter.Node {
	var touching *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		cs, ce := c.StartByte(), c.EndByte()
		if cs >= ce {
			continue
		}
		if start == end {
			if cs <= start && start < ce {
				return c
			}
			if ce == start && touching == nil {
				touching = c
			}
			continue
		}
		if cs <= start && end <= ce {
			return c
		}
	}
	return touching
}

// TokenAt returns the leaf node under offset, or the deepest node covering
// it when offset falls between tokens.
func (t *Tree) TokenAt(offset uint32) *sitter.Node {
	n := t.Root()
	for n.ChildCount() > 0 {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.StartByte() <= offset && offset < c.EndByte() {
				next = c
				break
			}
		}
		if next == nil {
			return n
		}
		n = next
	}
	return n
}

// IsIdentifier reports whether n is a named leaf, which is what a symbol
// lookup can match against.
func IsIdentifier(n *sitter.Node) bool {
	return n != nil && n.IsNamed() && n.ChildCount() == 0 && !n.IsMissing()
}

// Scan visits every node of the tree in document order and calls visit for
// each module declaration and type definition. Items without a usable name
// are skipped; scanning continues with their children and siblings.
func Scan(t *Tree, visit func(Item)) {
	scanNode(t, t.Root(), false, visit)
}

func scanNode(t *Tree, n *sitter.Node, nested bool, visit func(Item)) {
	kind, ok := itemKinds[n.Type()]
	if ok {
		if name := n.ChildByFieldName("name"); name != nil && !name.IsMissing() && name.EndByte() > name.StartByte() {
			visit(Item{
				Kind:   kind,
				Name:   t.Text(name),
				Start:  n.StartByte(),
				End:    n.EndByte(),
				Nested: nested,
			})
		}
	}
	inner := nested || (ok && kind == model.Module)
	for i := 0; i < int(n.ChildCount()); i++ {
		scanNode(t, n.Child(i), inner, visit)
	}
}

func collectErrors(n *sitter.Node, errs []SyntaxError) []SyntaxError {
	switch {
	case n.Type() == "ERROR":
		return append(errs, SyntaxError{
			Start:   n.StartByte(),
			End:     n.EndByte(),
			Message: "unexpected input",
		})
	case n.IsMissing():
		return append(errs, SyntaxError{
			Start:   n.StartByte(),
			End:     n.EndByte(),
			Message: fmt.Sprintf("missing %s", n.Type()),
		})
	}
	if !n.HasError() {
		return errs
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		errs = collectErrors(n.Child(i), errs)
	}
	return errs
}
