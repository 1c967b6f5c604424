package server

import (
	"context"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/fileid"
	"github.com/phobologic/rustnav/internal/workspace"
)

func (s *Server) initialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}

	s.roots = s.roots[:0]
	for _, folder := range params.WorkspaceFolders {
		s.addRoot(folder.URI)
	}
	if len(s.roots) == 0 && params.RootURI != "" {
		s.addRoot(string(params.RootURI))
	}
	s.state = stateInitialized

	return reply(ctx, protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			CodeActionProvider: true,
			DefinitionProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: Name, Version: s.version},
	}, nil)
}

func (s *Server) addRoot(raw string) {
	id, err := fileid.FromURI(protocol.DocumentURI(raw))
	if err != nil {
		s.logger.Warn("ignoring workspace folder", zap.String("uri", raw), zap.Error(err))
		return
	}
	s.roots = append(s.roots, id.Path())
}

// initialized runs the workspace walk over the client's folders, or the
// configured roots when the client sent none.
func (s *Server) initialized(ctx context.Context, reply jsonrpc2.Replier, _ jsonrpc2.Request) error {
	roots := s.roots
	if len(roots) == 0 {
		roots = s.cfg.RootPaths()
	}
	report, err := s.db.LoadWorkspace(ctx, roots, workspace.WalkOptions{
		Exclude:          s.cfg.Exclude,
		RespectGitignore: s.cfg.RespectGitignore,
		Workers:          s.cfg.PrefetchWorkers,
	})
	if err != nil {
		s.logger.Error("workspace walk stopped", zap.Error(err))
	}
	s.logger.Info("initialized",
		zap.Strings("roots", roots),
		zap.Int("files", report.Discovered))
	return reply(ctx, nil, nil)
}
