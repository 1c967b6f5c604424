package server

import (
	"context"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/fileid"
)

// codeRequestFailed is the LSP RequestFailed error code.
const codeRequestFailed jsonrpc2.Code = -32803

func (s *Server) didOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}
	doc := params.TextDocument
	if id, ok := s.documentID(doc.URI); ok {
		s.logUpdate("open", s.db.Open(ctx, id, doc.Version, doc.Text))
	}
	return reply(ctx, nil, nil)
}

func (s *Server) didChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return reply(ctx, nil, nil)
	}
	id, ok := s.documentID(params.TextDocument.URI)
	if !ok {
		return reply(ctx, nil, nil)
	}

	// Full sync: the last change holds the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	version := params.TextDocument.Version
	if _, known := s.db.File(id); known {
		s.logUpdate("change", s.db.Update(ctx, id, version, text))
	} else {
		s.logUpdate("change", s.db.Open(ctx, id, version, text))
	}
	return reply(ctx, nil, nil)
}

func (s *Server) didClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}
	if id, ok := s.documentID(params.TextDocument.URI); ok {
		s.db.Close(id)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) codeAction(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.CodeActionParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}
	id, err := fileid.FromURI(params.TextDocument.URI)
	if err != nil {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error()))
	}

	actions := s.db.ModuleActions(ctx, id)
	if actions == nil {
		actions = []protocol.CodeAction{}
	}
	return reply(ctx, actions, nil)
}

func (s *Server) definition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DefinitionParams
	if ok, err := s.decode(ctx, reply, req, &params); !ok {
		return err
	}
	id, err := fileid.FromURI(params.TextDocument.URI)
	if err != nil {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error()))
	}

	loc, ok := s.db.Definition(ctx, id, params.Position)
	if !ok {
		return reply(ctx, nil, jsonrpc2.NewError(codeRequestFailed, "No definition found"))
	}
	return reply(ctx, []protocol.Location{loc}, nil)
}

// documentID resolves the URI of a synced document. Failures are logged
// and the notification is dropped.
func (s *Server) documentID(u protocol.DocumentURI) (fileid.ID, bool) {
	id, err := fileid.FromURI(u)
	if err != nil {
		s.logger.Error("dropping document notification", zap.String("uri", string(u)), zap.Error(err))
		return fileid.ID{}, false
	}
	return id, true
}

func (s *Server) logUpdate(op string, err error) {
	if err != nil {
		s.logger.Error("document update failed", zap.String("op", op), zap.Error(err))
	}
}
