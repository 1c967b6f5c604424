package workspace

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lang"
)

// ModuleActions offers to declare id in its parent module file when the
// parent lacks a declaration for it: one private and one public variant.
// It returns nil when id has no parent or the parent already declares it.
func (db *Database) ModuleActions(ctx context.Context, id fileid.ID) []protocol.CodeAction {
	fd, ok := db.EnsureLoaded(ctx, id)
	if !ok || fd.Parent == nil {
		return nil
	}
	parentID := *fd.Parent
	parent, ok := db.File(parentID)
	if !ok {
		return nil
	}

	name := lang.ModuleName(id.Path())
	if parent.Declares(name) {
		return nil
	}

	// Insert after the last top-level declaration, or at the top of the file.
	var at protocol.Range
	format := "%smod %s;\n"
	if last, ok := parent.lastDeclaration(); ok {
		end := last.Range.End
		at = protocol.Range{Start: end, End: end}
		format = "\n%smod %s;"
	}

	return []protocol.CodeAction{
		insertModule(fmt.Sprintf("Insert `mod %s;`", name), fmt.Sprintf(format, "", name), at, parentID),
		insertModule(fmt.Sprintf("Insert `pub mod %s;`", name), fmt.Sprintf(format, "pub ", name), at, parentID),
	}
}

func insertModule(title, text string, at protocol.Range, parent fileid.ID) protocol.CodeAction {
	return protocol.CodeAction{
		Title: title,
		Kind:  protocol.QuickFix,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{
				protocol.DocumentURI(parent.URI()): {{Range: at, NewText: text}},
			},
		},
	}
}
