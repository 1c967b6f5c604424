// Package server connects a workspace database to an editor over the
// Language Server Protocol.
//
// Messages are handled one at a time in arrival order on the connection's
// read loop, so the database never sees concurrent access.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/phobologic/rustnav/internal/config"
	"github.com/phobologic/rustnav/internal/workspace"
)

// Name is reported to the client in the initialize result.
const Name = "rustnav"

// ErrExitWithoutShutdown is returned by Run when the client sent exit
// before shutdown.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// Options configures a server.
type Options struct {
	Config  *config.Config
	Version string
	Logger  *zap.Logger
}

type state int

const (
	stateNew state = iota
	stateInitialized
	stateShutdown
)

// Server handles the messages of one client connection.
type Server struct {
	db      *workspace.Database
	cfg     *config.Config
	version string
	logger  *zap.Logger

	state state
	// roots are the workspace folders announced in initialize.
	roots  []string
	exited chan struct{}
}

// New returns a server reporting to client.
func New(client workspace.Client, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		db:      workspace.New(client, logger.Named("workspace")),
		cfg:     cfg,
		version: opts.Version,
		logger:  logger,
		exited:  make(chan struct{}),
	}
}

// Run serves the LSP session carried by rwc until the client exits, the
// stream ends, or ctx is cancelled.
func Run(ctx context.Context, rwc io.ReadWriteCloser, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = logger

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	client := protocol.ClientDispatcher(conn, logger.Named("client"))
	s := New(client, opts)
	conn.Go(ctx, s.Handle)

	select {
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-s.exited:
		_ = conn.Close()
		return s.exitErr()
	case <-conn.Done():
		// The stream may end right after exit was handled.
		select {
		case <-s.exited:
			return s.exitErr()
		default:
		}
		if err := conn.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("connection closed: %w", err)
		}
		return nil
	}
}

// Database exposes the workspace store, mainly for tests.
func (s *Server) Database() *workspace.Database {
	return s.db
}

// Handle dispatches one incoming message. It never returns an error for a
// bad message; only a failure to write the reply ends the connection.
func (s *Server) Handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	_, isCall := req.(*jsonrpc2.Call)
	method := req.Method()
	s.logger.Debug("message received", zap.String("method", method), zap.Bool("call", isCall))

	if method == protocol.MethodExit {
		s.exit()
		return reply(ctx, nil, nil)
	}

	switch s.state {
	case stateNew:
		if method != protocol.MethodInitialize {
			if !isCall {
				s.logger.Warn("dropping notification before initialize", zap.String("method", method))
				return reply(ctx, nil, nil)
			}
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.ServerNotInitialized, "server not initialized"))
		}
	case stateInitialized:
		if method == protocol.MethodInitialize {
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server already initialized"))
		}
	case stateShutdown:
		if isCall {
			return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down"))
		}
		return reply(ctx, nil, nil)
	}

	switch method {
	case protocol.MethodInitialize:
		return s.initialize(ctx, reply, req)
	case protocol.MethodInitialized:
		return s.initialized(ctx, reply, req)
	case protocol.MethodShutdown:
		s.state = stateShutdown
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidOpen:
		return s.didOpen(ctx, reply, req)
	case protocol.MethodTextDocumentDidChange:
		return s.didChange(ctx, reply, req)
	case protocol.MethodTextDocumentDidClose:
		return s.didClose(ctx, reply, req)
	case protocol.MethodTextDocumentCodeAction:
		return s.codeAction(ctx, reply, req)
	case protocol.MethodTextDocumentDefinition:
		return s.definition(ctx, reply, req)
	}

	if isCall {
		return reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, "method not found: "+method))
	}
	return reply(ctx, nil, nil)
}

func (s *Server) exitErr() error {
	if s.state != stateShutdown {
		return ErrExitWithoutShutdown
	}
	return nil
}

func (s *Server) exit() {
	select {
	case <-s.exited:
	default:
		close(s.exited)
	}
}

// decode unmarshals the params of req into v. On failure it answers the
// message itself: InvalidParams for a call, a log entry for a notification.
// The returned bool reports whether decoding succeeded; when it is false
// the caller must return the returned error unchanged.
func (s *Server) decode(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, v any) (bool, error) {
	err := json.Unmarshal(req.Params(), v)
	if err == nil {
		return true, nil
	}
	if _, isCall := req.(*jsonrpc2.Call); isCall {
		return false, reply(ctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error()))
	}
	s.logger.Error("dropping malformed notification", zap.String("method", req.Method()), zap.Error(err))
	return false, reply(ctx, nil, nil)
}
