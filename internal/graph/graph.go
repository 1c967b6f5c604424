// Package graph turns a workspace database into a module tree and ranks
// its files with PageRank.
package graph

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lang"
	"github.com/phobologic/rustnav/internal/model"
	"github.com/phobologic/rustnav/internal/workspace"
)

// Build snapshots db into a workspace map. Paths are reported relative to
// root when they lie under it.
func Build(db *workspace.Database, name, root string) *model.WorkspaceMap {
	wm := &model.WorkspaceMap{Name: name, Root: root}
	rel := func(id fileid.ID) string { return relPath(root, id.Path()) }

	defs := db.TypeDefs()
	owned := make(map[fileid.ID][]string)
	for _, def := range defs {
		owned[def.File] = append(owned[def.File], def.Name)
	}

	for _, id := range db.FileIDs() {
		fd, ok := db.File(id)
		if !ok {
			continue
		}

		fs := model.FileSummary{
			Path:    rel(id),
			Version: fd.Version,
			Open:    fd.IsOpen,
			Errors:  len(fd.Diagnostics),
		}
		for _, m := range fd.Modules {
			if !m.Nested {
				fs.Modules = append(fs.Modules, m.Name)
			}
		}
		fs.Types = owned[id]

		switch {
		case fd.Parent != nil:
			fs.Parent = rel(*fd.Parent)
			wm.Edges = append(wm.Edges, moduleEdge(db, id, *fd.Parent, rel))
		case !lang.IsCrateRoot(id.Name()):
			wm.Orphans = append(wm.Orphans, fs.Path)
		}
		wm.Files = append(wm.Files, fs)
	}

	for _, def := range defs {
		wm.Symbols = append(wm.Symbols, model.Symbol{
			Path: workspace.TypePath(def.Name).Key(),
			Name: def.Name,
			Kind: def.Kind,
			File: rel(def.File),
			Line: int(def.Range.Start.Line) + 1,
		})
	}
	sort.Slice(wm.Symbols, func(i, j int) bool {
		if wm.Symbols[i].File != wm.Symbols[j].File {
			return wm.Symbols[i].File < wm.Symbols[j].File
		}
		return wm.Symbols[i].Line < wm.Symbols[j].Line
	})

	Rank(wm.Files, wm.Edges)
	return wm
}

func moduleEdge(db *workspace.Database, child, parent fileid.ID, rel func(fileid.ID) string) model.ModuleEdge {
	name := lang.ModuleName(child.Path())
	declared := false
	if pd, ok := db.File(parent); ok {
		declared = pd.Declares(name)
	}
	return model.ModuleEdge{
		Child:    rel(child),
		Parent:   rel(parent),
		Name:     name,
		Declared: declared,
	}
}

func relPath(root, path string) string {
	if root == "" {
		return path
	}
	r, err := filepath.Rel(root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(r)
}

// Rank scores files by their position in the module tree and sorts them by
// score, highest first. Every child-to-parent edge passes rank upward, so
// crate roots and heavily nested parents come out on top. Ties keep path
// order.
func Rank(files []model.FileSummary, edges []model.ModuleEdge) {
	if len(files) == 0 {
		return
	}

	index := make(map[string]int, len(files))
	for i := range files {
		index[files[i].Path] = i
	}

	parentOf := make([]int, len(files))
	for i := range parentOf {
		parentOf[i] = -1
	}
	for _, e := range edges {
		c, cok := index[e.Child]
		p, pok := index[e.Parent]
		if cok && pok && c != p {
			parentOf[c] = p
		}
	}

	ranks := pageRank(parentOf, 0.85, 100, 1e-6)
	for i := range files {
		files[i].Rank = ranks[i]
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Rank != files[j].Rank {
			return files[i].Rank > files[j].Rank
		}
		return files[i].Path < files[j].Path
	})
}

// pageRank runs power iteration over a graph in which every node has at
// most one outgoing edge, given as parentOf (-1 for none). Nodes without an
// edge spread their rank uniformly.
func pageRank(parentOf []int, alpha float64, maxIter int, tol float64) []float64 {
	n := len(parentOf)
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	teleport := (1.0 - alpha) / float64(n)

	next := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		var dangling float64
		for i, p := range parentOf {
			if p < 0 {
				dangling += rank[i]
			}
		}
		base := teleport + alpha*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for i, p := range parentOf {
			if p >= 0 {
				next[p] += alpha * rank[i]
			}
		}

		var diff float64
		for i := range rank {
			diff += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if diff < tol {
			break
		}
	}
	return rank
}
