package workspace

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/lineindex"
	"github.com/phobologic/rustnav/internal/parse"
)

const diagnosticSource = "rustnav"

// fileDiagnostics turns the syntax errors of tree into error diagnostics,
// each widened to the smallest syntax node covering the error.
func fileDiagnostics(tree *parse.Tree, index *lineindex.Index) []protocol.Diagnostic {
	diagnostics := make([]protocol.Diagnostic, 0, len(tree.Errors))
	for _, e := range tree.Errors {
		n := tree.Covering(e.Start, e.End)
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    index.Range(int(n.StartByte()), int(n.EndByte())),
			Severity: protocol.DiagnosticSeverityError,
			Source:   diagnosticSource,
			Message:  fmt.Sprintf("Syntax Error: %s", e.Message),
		})
	}
	return diagnostics
}

// publishDiagnostics sends the full diagnostic set of id, replacing
// whatever the client holds, tagged with version.
func (db *Database) publishDiagnostics(ctx context.Context, id fileid.ID, version int32, diagnostics []protocol.Diagnostic) {
	if db.client == nil {
		return
	}
	err := db.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(id.URI()),
		Version:     uint32(version),
		Diagnostics: diagnostics,
	})
	if err != nil {
		db.logger.Warn("publishing diagnostics", zap.String("path", id.Path()), zap.Error(err))
	}
}
