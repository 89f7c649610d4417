package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/service"
)

// Store is the read surface the MCP tools need.
type Store interface {
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	ListRepositoriesByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]*domain.Repository, error)
	GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error)
}

// Server implements a Model Context Protocol (MCP) server. It exposes
// read-only tools so external AI agents can inspect imported repositories,
// import progress, and storage usage.
type Server struct {
	store   Store
	imports *service.ImportService
	storage *service.StorageService
	port    string
}

// NewServer creates a new MCP server.
func NewServer(store Store, imports *service.ImportService, storage *service.StorageService, port string) *Server {
	return &Server{store: store, imports: imports, storage: storage, port: port}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)

	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "repodock",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send initial endpoint message
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	w.(http.Flusher).Flush()

	// Keep connection alive
	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "list_repositories",
			Description: "List repositories imported by an owner, most recent first",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"owner_email": {"type": "string", "description": "Owner email address"},
					"limit": {"type": "integer", "description": "Maximum repositories to return (default 20)"}
				},
				"required": ["owner_email"]
			}`),
		},
		{
			Name:        "get_repository",
			Description: "Get a repository record by ID",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Repository ID"}
				},
				"required": ["id"]
			}`),
		},
		{
			Name:        "get_import_status",
			Description: "Get the status and progress of an import job",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"job_id": {"type": "string", "description": "Import job ID"}
				},
				"required": ["job_id"]
			}`),
		},
		{
			Name:        "get_storage_usage",
			Description: "Report clone storage usage against the configured limit",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	switch req.Name {
	case "list_repositories":
		var args struct {
			OwnerEmail string `json:"owner_email"`
			Limit      int    `json:"limit"`
		}
		json.Unmarshal(req.Arguments, &args)
		if args.Limit < 1 {
			args.Limit = service.DefaultPerPage
		}

		repos, err := s.store.ListRepositoriesByOwner(ctx, args.OwnerEmail, args.Limit, 0)
		if err != nil {
			return nil, err
		}
		return textResult(map[string]interface{}{"repositories": repos, "count": len(repos)})

	case "get_repository":
		var args struct {
			ID string `json:"id"`
		}
		json.Unmarshal(req.Arguments, &args)

		repo, err := s.store.GetRepository(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		return textResult(repo)

	case "get_import_status":
		var args struct {
			JobID string `json:"job_id"`
		}
		json.Unmarshal(req.Arguments, &args)

		// MCP callers are trusted, so look the owner up from the job
		// itself instead of requiring credentials.
		job, err := s.store.GetImportJob(ctx, args.JobID)
		if err != nil {
			return nil, err
		}
		status, err := s.imports.JobStatus(ctx, args.JobID, job.OwnerEmail)
		if err != nil {
			return nil, err
		}
		return textResult(status)

	case "get_storage_usage":
		report, err := s.storage.Usage(ctx)
		if err != nil {
			return nil, err
		}
		return textResult(report)

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

// textResult wraps a payload as MCP text content.
func textResult(v interface{}) (interface{}, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(data)},
		},
	}, nil
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
