// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/rustnav/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a WorkspaceMap into TOON format. The orphans table is
// omitted when there are none.
func Encode(wm *model.WorkspaceMap) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("workspace: %s", encodeValue(wm.Name)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(wm.Root)))

	var fileRows [][]string
	for i := range wm.Files {
		fs := &wm.Files[i]
		fileRows = append(fileRows, []string{
			encodeValue(fs.Path),
			strconv.Itoa(int(fs.Version)),
			strconv.FormatBool(fs.Open),
			encodeValue(fs.Parent),
			strconv.Itoa(len(fs.Modules)),
			strconv.Itoa(len(fs.Types)),
			strconv.Itoa(fs.Errors),
			fmt.Sprintf("%.4f", fs.Rank),
		})
	}
	parts = append(parts, formatTabular("files",
		[]string{"path", "version", "open", "parent", "modules", "types", "errors", "rank"}, fileRows))

	var symbolRows [][]string
	for i := range wm.Symbols {
		sym := &wm.Symbols[i]
		symbolRows = append(symbolRows, []string{
			encodeValue(sym.File),
			encodeValue(sym.Name),
			encodeValue(string(sym.Kind)),
			strconv.Itoa(sym.Line),
			encodeValue(sym.Path),
		})
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line", "path"}, symbolRows))

	var edgeRows [][]string
	for i := range wm.Edges {
		e := &wm.Edges[i]
		edgeRows = append(edgeRows, []string{
			encodeValue(e.Child),
			encodeValue(e.Parent),
			encodeValue(e.Name),
			strconv.FormatBool(e.Declared),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"child", "parent", "name", "declared"}, edgeRows))

	if len(wm.Orphans) > 0 {
		var orphanRows [][]string
		for _, o := range wm.Orphans {
			orphanRows = append(orphanRows, []string{encodeValue(o)})
		}
		parts = append(parts, formatTabular("orphans", []string{"path"}, orphanRows))
	}

	return strings.Join(parts, "\n")
}

// formatTabular renders a table whose cells are already encoded.
func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		fmt.Fprintf(&b, "\n  %s", strings.Join(row, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
