package mcp

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/executor"
	"github.com/dunelink/dunelink/internal/handlers"
	"github.com/dunelink/dunelink/internal/service"
	"github.com/dunelink/dunelink/pkg/version"
)

const (
	serverName   = "DuneLink"
	queryIDParam = "query_id"
)

// QueryService is implemented by *service.QueryService.
type QueryService interface {
	Latest(ctx context.Context, queryID int64) (*executor.Result, error)
	Execute(ctx context.Context, queryID int64) (*executor.Result, error)
}

type Server struct {
	svc QueryService
	mcp *server.MCPServer
}

func NewServer(svc QueryService) *Server {
	s := &Server{
		svc: svc,
		mcp: server.NewMCPServer(serverName, version.Get().GitVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(handlers.ToolGetLatestResult,
		mcp.WithDescription(handlers.ToolGetLatestResultDescription),
		mcp.WithNumber(queryIDParam, mcp.Required(), mcp.Description("The Dune Analytics query ID")),
	), s.GetLatestResult)

	s.mcp.AddTool(mcp.NewTool(handlers.ToolRunQuery,
		mcp.WithDescription(handlers.ToolRunQueryDescription),
		mcp.WithNumber(queryIDParam, mcp.Required(), mcp.Description("The Dune Analytics query ID to execute")),
	), s.RunQuery)

	return s
}

func (s *Server) GetLatestResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID, err := queryIDFrom(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.svc.Latest(ctx, queryID)
	return toolResult(service.OperationLatest, result, err), nil
}

func (s *Server) RunQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID, err := queryIDFrom(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.svc.Execute(ctx, queryID)
	return toolResult(service.OperationExecute, result, err), nil
}

// ServeStdio serves the tools over stdin/stdout until ctx is done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	zap.S().Named("mcp").Info("serving tools over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// Handler serves the tools over the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func queryIDFrom(request mcp.CallToolRequest) (int64, error) {
	raw, err := request.RequireFloat(queryIDParam)
	if err != nil {
		return 0, err
	}
	if raw != math.Trunc(raw) || raw < 1 || raw > math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a positive integer, got %v", queryIDParam, raw)
	}
	return int64(raw), nil
}

func toolResult(op service.Operation, result *executor.Result, err error) *mcp.CallToolResult {
	text := service.ResultText(op, result, err)
	if err != nil {
		return mcp.NewToolResultError(text)
	}
	return mcp.NewToolResultText(text)
}
