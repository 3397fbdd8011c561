package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/leengari/automanager/internal/backup"
	"github.com/leengari/automanager/internal/domain/data"
	"github.com/leengari/automanager/internal/manager"
)

// Request is one JSON command sent by a client
type Request struct {
	Op       string   `json:"op"`
	Token    string   `json:"token,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	Table    string   `json:"table,omitempty"`
	NewName  string   `json:"new_name,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Values   []string `json:"values,omitempty"`
	Index    int      `json:"index,omitempty"`
	Field    string   `json:"field,omitempty"`
	Value    string   `json:"value,omitempty"`
	Tables   []string `json:"tables,omitempty"`
}

// Response is the reply to a single Request
type Response struct {
	Ok      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	Tables  []string        `json:"tables,omitempty"`
	Fields  []string        `json:"fields,omitempty"`
	Rows    []data.Row      `json:"rows,omitempty"`
	Matches []data.Match    `json:"matches,omitempty"`
	Path    string          `json:"path,omitempty"`
	Undo    int             `json:"undo,omitempty"`
	Redo    int             `json:"redo,omitempty"`
	Applied bool            `json:"applied,omitempty"`
	Backups []backup.Result `json:"backups,omitempty"`
}

// Server answers JSON requests over TCP, one goroutine per connection
type Server struct {
	ws     *manager.Workspace
	logger *slog.Logger
}

func NewServer(ws *manager.Workspace, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ws: ws, logger: logger}
}

// Serve accepts connections until l is closed
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("Failed to accept connection", "error", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Debug("client connected")

	// owned is the session opened by a login on this connection
	var session, owned *manager.Session
	defer func() { s.ws.Logout(owned) }()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			if err == io.EOF {
				logger.Debug("client disconnected")
				return
			}
			logger.Error("decode error", "error", err)
			_ = encoder.Encode(&Response{Error: fmt.Sprintf("Invalid request format: %v", err)})
			return
		}

		if req.Op == "exit" {
			return
		}

		// a token names the session for this request only; an unknown or
		// ended token leaves the request unauthenticated
		current := session
		if req.Token != "" {
			current, _ = s.ws.Session(req.Token)
		}

		prev := current
		resp := s.dispatch(&current, &req)
		switch {
		case req.Op == "login" && resp.Ok:
			s.ws.Logout(owned)
			session, owned = current, current
		case req.Op == "logout" && prev != nil && prev == session:
			session = nil
		}
		if err := encoder.Encode(resp); err != nil {
			logger.Error("encode error", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(session **manager.Session, req *Request) *Response {
	resp, err := s.execute(session, req)
	if err != nil {
		return &Response{Error: err.Error()}
	}
	resp.Ok = true
	return resp
}

func (s *Server) execute(session **manager.Session, req *Request) (*Response, error) {
	ws, sess := s.ws, *session

	switch req.Op {
	case "login":
		found, err := ws.Login(req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		*session = found
		return &Response{Token: found.Token, Message: fmt.Sprintf("logged in as %s", found.Username)}, nil

	case "logout":
		ws.Logout(sess)
		*session = nil
		return &Response{Message: "logged out"}, nil

	case "tables":
		tables, err := ws.ListTables(sess)
		return &Response{Tables: tables}, err

	case "create":
		path, err := ws.CreateTable(sess, req.Table, req.Fields)
		return &Response{Path: path}, err

	case "fields":
		fields, err := ws.Fields(sess, req.Table)
		return &Response{Fields: fields}, err

	case "rows":
		rows, err := ws.ReadAll(sess, req.Table)
		return &Response{Rows: rows}, err

	case "add":
		return &Response{}, ws.AppendRow(sess, req.Table, data.NewRow(req.Values...))

	case "update":
		return &Response{}, ws.UpdateRow(sess, req.Table, req.Index, data.NewRow(req.Values...))

	case "delete":
		return &Response{}, ws.DeleteRow(sess, req.Table, req.Index)

	case "find":
		m, ok, err := ws.SearchFirst(sess, req.Table, req.Field, req.Value)
		if err != nil || !ok {
			return &Response{}, err
		}
		return &Response{Matches: []data.Match{m}}, nil

	case "findall":
		matches, err := ws.SearchAll(sess, req.Table, req.Field, req.Value)
		return &Response{Matches: matches}, err

	case "undo":
		ok, err := ws.Undo(sess, req.Table)
		return &Response{Applied: ok}, err

	case "redo":
		ok, err := ws.Redo(sess, req.Table)
		return &Response{Applied: ok}, err

	case "history":
		undo, redo, err := ws.History(sess, req.Table)
		return &Response{Undo: undo, Redo: redo}, err

	case "rename":
		return &Response{}, ws.RenameTable(sess, req.Table, req.NewName)

	case "drop":
		return &Response{}, ws.DeleteTable(sess, req.Table)

	case "path":
		path, err := ws.BackingPath(sess, req.Table)
		return &Response{Path: path}, err

	case "backup":
		results, err := ws.Backup(context.Background(), sess, req.Tables...)
		return &Response{Backups: results}, err
	}
	return nil, fmt.Errorf("unknown op %q", req.Op)
}
