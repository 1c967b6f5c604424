// Package filter narrows a workspace map for focused output.
package filter

import (
	"strings"

	"github.com/phobologic/rustnav/internal/model"
)

// SelectFiles returns a new map with only the top-ranked files, plus the
// symbols, module edges and orphans that lie entirely within them. Files
// must already be sorted by rank. If maxFiles is <= 0 or >= len(files), wm
// is returned unchanged.
func SelectFiles(wm *model.WorkspaceMap, maxFiles int) *model.WorkspaceMap {
	if maxFiles <= 0 || maxFiles >= len(wm.Files) {
		return wm
	}
	return subset(wm, wm.Files[:maxFiles], func(e *model.ModuleEdge, in set) bool {
		return in.has(e.Child) && in.has(e.Parent)
	})
}

// FilterByFile returns a new map containing only files whose path contains
// substr (case-insensitive), the symbols they define, and every module
// edge touching them.
func FilterByFile(wm *model.WorkspaceMap, substr string) *model.WorkspaceMap {
	lower := strings.ToLower(substr)

	var files []model.FileSummary
	for i := range wm.Files {
		if strings.Contains(strings.ToLower(wm.Files[i].Path), lower) {
			files = append(files, wm.Files[i])
		}
	}
	return subset(wm, files, touches)
}

// FilterBySymbol returns a new map containing only type symbols whose name
// contains substr (case-insensitive), the files that define them and those
// files' parent modules, and the module edges touching the defining files.
func FilterBySymbol(wm *model.WorkspaceMap, substr string) *model.WorkspaceMap {
	lower := strings.ToLower(substr)

	var symbols []model.Symbol
	defining := make(set)
	for i := range wm.Symbols {
		if strings.Contains(strings.ToLower(wm.Symbols[i].Name), lower) {
			symbols = append(symbols, wm.Symbols[i])
			defining[wm.Symbols[i].File] = struct{}{}
		}
	}

	// Parents give each definition its place in the module tree.
	keep := make(set, len(defining))
	for i := range wm.Files {
		if defining.has(wm.Files[i].Path) {
			keep[wm.Files[i].Path] = struct{}{}
			if p := wm.Files[i].Parent; p != "" {
				keep[p] = struct{}{}
			}
		}
	}

	var files []model.FileSummary
	for i := range wm.Files {
		if keep.has(wm.Files[i].Path) {
			files = append(files, wm.Files[i])
		}
	}

	out := subset(wm, files, func(e *model.ModuleEdge, _ set) bool {
		return defining.has(e.Child) || defining.has(e.Parent)
	})
	out.Symbols = symbols
	return out
}

type set map[string]struct{}

func (s set) has(k string) bool {
	_, ok := s[k]
	return ok
}

func touches(e *model.ModuleEdge, in set) bool {
	return in.has(e.Child) || in.has(e.Parent)
}

// subset builds a map over files, keeping the symbols and orphans they own
// and the edges keepEdge accepts.
func subset(wm *model.WorkspaceMap, files []model.FileSummary, keepEdge func(*model.ModuleEdge, set) bool) *model.WorkspaceMap {
	in := make(set, len(files))
	for i := range files {
		in[files[i].Path] = struct{}{}
	}

	out := &model.WorkspaceMap{
		Name:  wm.Name,
		Root:  wm.Root,
		Files: files,
	}
	for i := range wm.Symbols {
		if in.has(wm.Symbols[i].File) {
			out.Symbols = append(out.Symbols, wm.Symbols[i])
		}
	}
	for i := range wm.Edges {
		if keepEdge(&wm.Edges[i], in) {
			out.Edges = append(out.Edges, wm.Edges[i])
		}
	}
	for _, o := range wm.Orphans {
		if in.has(o) {
			out.Orphans = append(out.Orphans, o)
		}
	}
	return out
}
