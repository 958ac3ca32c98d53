// Package mcp exposes a quill engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/parser"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/aretw0/quill/pkg/state"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// SchemaURI is the resource holding the session key table.
const SchemaURI = "quill://schema"

// InitialData reports whether a session could start with the given inputs.
type InitialData struct {
	Status      string   `json:"status" jsonschema_description:"ready or missing_data"`
	MissingKeys []string `json:"missing_keys,omitempty" jsonschema_description:"Required inputs that are absent or blank"`
}

// Server wraps a refiner and exposes it as an MCP server.
type Server struct {
	refiner   ports.Refiner
	schema    schema.Schema
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSchema sets the table served at SchemaURI.
func WithSchema(sch schema.Schema) Option {
	return func(s *Server) {
		s.schema = sch
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server for refiner.
func NewServer(refiner ports.Refiner, version string, opts ...Option) *Server {
	s := &Server{
		refiner:   refiner,
		schema:    state.DefaultSchema(),
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("quill-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func inputParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString(domain.KeyMaterial, mcp.Description("Source material the draft is based on")),
		mcp.WithString(domain.KeyRequirements, mcp.Description("What the draft must achieve")),
		mcp.WithString(domain.KeyScoringCriteria, mcp.Description("How the evaluator scores drafts")),
	}
}

func (s *Server) registerTools() {
	refineOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Draft, score and revise until the score passes the threshold or the iteration cap is hit."),
		mcp.WithString("session_id", mcp.Description("Session ID (generated when omitted)")),
		mcp.WithNumber(domain.KeyScoreThreshold, mcp.Description("Passing score, 0 to 100"), mcp.Min(0), mcp.Max(domain.MaxScore)),
		mcp.WithNumber(domain.KeyMaxIterations, mcp.Description("Iteration cap"), mcp.Min(1)),
		mcp.WithOutputSchema[domain.Result](),
	}, inputParams()...)
	s.mcpServer.AddTool(mcp.NewTool("refine", refineOpts...), mcp.NewStructuredToolHandler(s.handleRefine))

	s.mcpServer.AddTool(mcp.NewTool("parse_evaluation",
		mcp.WithDescription("Extract score, feedback and key issues from evaluator text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw evaluator output")),
		mcp.WithOutputSchema[parser.Evaluation](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("check_progress",
		mcp.WithDescription("Decide whether a session should continue or stop."),
		mcp.WithObject("state", mcp.Required(), mcp.Description("Session values such as current_score and iteration_count")),
		mcp.WithOutputSchema[domain.Progress](),
	), mcp.NewStructuredToolHandler(s.handleCheckProgress))

	initialOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Report which required inputs are missing before starting a session."),
		mcp.WithOutputSchema[InitialData](),
	}, inputParams()...)
	s.mcpServer.AddTool(mcp.NewTool("check_initial_data", initialOpts...), mcp.NewStructuredToolHandler(s.handleInitialData))

	s.mcpServer.AddTool(mcp.NewTool("get_final_draft",
		mcp.WithDescription("Return the aggregated outcome of a stored session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[domain.Result](),
	), mcp.NewStructuredToolHandler(s.handleFinalDraft))
}

type refineArgs struct {
	SessionID     string `mapstructure:"session_id"`
	domain.Inputs `mapstructure:",squash"`
}

func (s *Server) handleRefine(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	var in refineArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return domain.Result{}, fmt.Errorf("invalid arguments: %w", err)
	}

	res, err := s.refiner.Refine(ctx, in.SessionID, in.Inputs)
	if _, missing := domain.MissingKeys(err); missing {
		return res, nil
	}
	if err != nil {
		s.logger.Error("MCP refine failed", "session_id", in.SessionID, "err", err)
		return domain.Result{}, fmt.Errorf("refine failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleParse(_ context.Context, _ mcp.CallToolRequest, args map[string]any) (parser.Evaluation, error) {
	text, ok := args["text"].(string)
	if !ok {
		return parser.Evaluation{}, errors.New("text must be a string")
	}
	return parser.Parse(text), nil
}

func (s *Server) handleCheckProgress(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Progress, error) {
	values, ok := args["state"].(map[string]any)
	if !ok {
		return domain.Progress{}, errors.New("state must be an object")
	}
	return s.refiner.Check(ctx, values), nil
}

func (s *Server) handleInitialData(_ context.Context, _ mcp.CallToolRequest, args map[string]any) (InitialData, error) {
	var in domain.Inputs
	if err := mapstructure.Decode(args, &in); err != nil {
		return InitialData{}, fmt.Errorf("invalid arguments: %w", err)
	}
	st := state.New(domain.NewState("check"))
	st.Update(in.Values())

	if missing := st.Missing(domain.RequiredInputs...); len(missing) > 0 {
		return InitialData{Status: string(domain.ResultMissingData), MissingKeys: missing}, nil
	}
	return InitialData{Status: "ready"}, nil
}

func (s *Server) handleFinalDraft(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return domain.Result{}, errors.New("session_id is required")
	}
	res, err := s.refiner.Result(ctx, id)
	if err != nil {
		return domain.Result{}, fmt.Errorf("get final draft: %w", err)
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SchemaURI, "Session key types",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		raw, err := json.Marshal(s.schema)
		if err != nil {
			return nil, fmt.Errorf("encode schema: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SchemaURI,
				MIMEType: "application/json",
				Text:     string(raw),
			},
		}, nil
	})
}
