package workspace

import (
	"context"
	"path/filepath"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lang"
)

// Resolution is the outcome of a parent lookup.
type Resolution struct {
	Parent fileid.ID
	Found  bool
	// Loaded lists every file the lookup added to the database, including
	// files loaded transitively while analyzing the candidates.
	Loaded []fileid.ID
}

// ResolveParent finds the parent module file of id by directory convention,
// loading candidates into the database as it goes:
//
//  1. lib.rs and main.rs have no parent.
//  2. mod.rs searches from the directory above its own; other files search
//     their own directory.
//  3. In the search directory, mod.rs, then lib.rs, then main.rs.
//  4. Otherwise <dir>.rs next to the search directory.
func (db *Database) ResolveParent(ctx context.Context, id fileid.ID) Resolution {
	var loaded []fileid.ID
	if db.loadTrace == nil {
		db.loadTrace = &loaded
		defer func() { db.loadTrace = nil }()
	}

	parent, ok := db.resolveParent(ctx, id)
	return Resolution{Parent: parent, Found: ok, Loaded: loaded}
}

func (db *Database) resolveParent(ctx context.Context, id fileid.ID) (fileid.ID, bool) {
	name := id.Name()
	if lang.IsCrateRoot(name) {
		return fileid.ID{}, false
	}

	dir := id.Dir()
	if name == lang.DirModule {
		dir = filepath.Dir(dir)
	}

	candidates := []string{
		filepath.Join(dir, lang.DirModule),
		filepath.Join(dir, lang.LibRoot),
		filepath.Join(dir, lang.BinRoot),
		filepath.Join(filepath.Dir(dir), filepath.Base(dir)+lang.Extension),
	}
	for _, candidate := range candidates {
		cid, err := fileid.FromPath(candidate)
		if err != nil || cid == id {
			continue
		}
		if _, ok := db.EnsureLoaded(ctx, cid); ok {
			return cid, true
		}
	}
	return fileid.ID{}, false
}

// refreshParent re-resolves and stores the parent link of id.
func (db *Database) refreshParent(ctx context.Context, id fileid.ID) {
	parent, ok := db.resolveParent(ctx, id)
	fd, exists := db.files[id]
	if !exists {
		return
	}
	if !ok {
		fd.Parent = nil
		return
	}
	fd.Parent = &parent
}
