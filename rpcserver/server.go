// Package rpcserver implements the JSON-RPC Server: a line-delimited
// bidirectional transport with single-threaded cooperative dispatch over
// an arbitrary request handler, plus server-initiated notify/stop.
package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/wn-agent/wn/jsonrpc"
)

// MethodNotFoundError is the dedicated marker a Handler returns to signal
// that no handler exists for the requested method. Any other error is
// reported as an internal error.
type MethodNotFoundError struct{ Method string }

func (e *MethodNotFoundError) Error() string { return fmt.Sprintf("method not found: %s", e.Method) }

// Handler dispatches one request or notification. Notification results are
// discarded; notification errors are converted to a warn-level log
// notification rather than terminating the server.
type Handler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Server reads NDJSON JSON-RPC 2.0 from in, dispatches to Handler, and
// writes responses and notifications to out. Scheduling is single-threaded
// cooperative: Start dispatches one line at a time in arrival order.
type Server struct {
	in      io.Reader
	out     io.Writer
	handler Handler

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// New constructs a Server over the given transport and handler.
func New(in io.Reader, out io.Writer, handler Handler) *Server {
	return &Server{
		in:      in,
		out:     out,
		handler: handler,
		enc:     json.NewEncoder(out),
		stopCh:  make(chan struct{}),
	}
}

// Start reads lines until the input stream ends or Stop is called. The
// stopped flag is reset on entry, so Start may be called again after Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	type lineOrErr struct {
		line []byte
		err  error
	}
	lines := make(chan lineOrErr)
	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			buf := make([]byte, len(scanner.Bytes()))
			copy(buf, scanner.Bytes())
			select {
			case lines <- lineOrErr{line: buf}:
			case <-stopCh:
				return
			}
		}
		select {
		case lines <- lineOrErr{err: scanner.Err()}:
		case <-stopCh:
		}
	}()

	for {
		select {
		case <-stopCh:
			return nil
		case item := <-lines:
			if item.err != nil {
				return item.err
			}
			if item.line == nil {
				return nil
			}
			if len(item.line) == 0 {
				continue
			}
			s.handleLine(ctx, item.line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	msg, err := jsonrpc.Parse(line)
	if err != nil {
		var parseErr *jsonrpc.ParseError
		if errors.As(err, &parseErr) {
			s.writeResponse(jsonrpc.ErrorResponse(nil, jsonrpc.CodeParseError, "Parse error"))
			return
		}
		s.writeResponse(jsonrpc.ErrorResponse(nil, jsonrpc.CodeInvalidRequest, err.Error()))
		return
	}

	switch msg.Kind {
	case jsonrpc.KindRequest:
		result, err := s.handler(ctx, msg.Method, msg.Params)
		if err != nil {
			var notFound *MethodNotFoundError
			if errors.As(err, &notFound) {
				s.writeResponse(jsonrpc.ErrorResponse(msg.ID, jsonrpc.CodeMethodNotFound, err.Error()))
				return
			}
			s.writeResponse(jsonrpc.ErrorResponse(msg.ID, jsonrpc.CodeInternalError, err.Error()))
			return
		}
		s.writeResponse(jsonrpc.SuccessResponse(msg.ID, result))

	case jsonrpc.KindNotification:
		if _, err := s.handler(ctx, msg.Method, msg.Params); err != nil {
			s.Notify("log", map[string]any{"level": "warn", "message": err.Error()})
		}

	case jsonrpc.KindResponse:
		// The core is a server, not a client; incoming responses are ignored.
	}
}

func (s *Server) writeResponse(resp jsonrpc.Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.enc.Encode(resp)
}

// Notify writes a notification line immediately. Writes are synchronous:
// ordering matches call order.
func (s *Server) Notify(method string, params any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.enc.Encode(jsonrpc.NewNotification(method, params))
}

// Stop sets the stopped flag; any pending read resolves and Start returns.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}
