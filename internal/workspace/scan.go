package workspace

import (
	"context"
	"fmt"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lang"
	"github.com/phobologic/rustnav/internal/lineindex"
	"github.com/phobologic/rustnav/internal/model"
	"github.com/phobologic/rustnav/internal/parse"
)

// TypePath returns the type table key for a bare type name. Scoping is
// flat: every name lives directly under the crate scope, so equal names in
// different modules share one key.
func TypePath(name string) model.ItemPath {
	return model.ItemPath{
		Module: model.ModulePath{Crate: lang.Crate},
		Name:   name,
	}
}

// scanFile rebuilds the module declarations of id and inserts its type
// definitions into the global table.
func (db *Database) scanFile(ctx context.Context, id fileid.ID, tree *parse.Tree, index *lineindex.Index) {
	fd, ok := db.files[id]
	if !ok {
		return
	}
	fd.Modules = nil

	parse.Scan(tree, func(it parse.Item) {
		rng := index.Range(int(it.Start), int(it.End))
		if it.Kind == model.Module {
			fd.Modules = append(fd.Modules, model.ModuleDecl{Name: it.Name, Range: rng, Nested: it.Nested})
			return
		}
		if !it.Kind.IsType() {
			return
		}

		path := TypePath(it.Name)
		if old, exists := db.typeDefs[path.Key()]; exists {
			db.logWarning(ctx, fmt.Sprintf(
				"discarding type def `%s` from %s; conflicting type name encountered",
				old.Name, old.File.Path()))
		}
		db.typeDefs[path.Key()] = model.TypeDef{
			File:  id,
			Range: rng,
			Name:  it.Name,
			Kind:  it.Kind,
		}
		fd.Types = append(fd.Types, path)
	})
}

// dropTypes removes the type definitions fd still owns. Entries another
// file has since taken over are left alone.
func (db *Database) dropTypes(id fileid.ID, fd *FileData) {
	for _, path := range fd.Types {
		if def, ok := db.typeDefs[path.Key()]; ok && def.File == id {
			delete(db.typeDefs, path.Key())
		}
	}
	fd.Types = nil
}
