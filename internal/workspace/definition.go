package workspace

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/parse"
)

// Definition finds the type definition named by the identifier under pos in
// id. The lookup is by literal name in the flat type table; whichever file
// last defined the name wins.
func (db *Database) Definition(ctx context.Context, id fileid.ID, pos protocol.Position) (protocol.Location, bool) {
	fd, ok := db.EnsureLoaded(ctx, id)
	if !ok || fd.Tree == nil {
		return protocol.Location{}, false
	}
	offset, ok := fd.Index.Offset(pos)
	if !ok {
		return protocol.Location{}, false
	}

	tok := fd.Tree.TokenAt(uint32(offset))
	if !parse.IsIdentifier(tok) && offset > 0 {
		// Cursor sits just past the end of a name.
		tok = fd.Tree.TokenAt(uint32(offset - 1))
	}
	if !parse.IsIdentifier(tok) {
		return protocol.Location{}, false
	}

	def, ok := db.TypeDef(TypePath(fd.Tree.Text(tok)))
	if !ok {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: protocol.DocumentURI(def.File.URI()), Range: def.Range}, true
}
