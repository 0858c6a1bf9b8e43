package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/executor"
	"github.com/dunelink/dunelink/internal/service"
	"github.com/dunelink/dunelink/internal/store/model"
	"github.com/dunelink/dunelink/pkg/version"
)

const (
	queryIDParam     = "query_id"
	executionIDParam = "execution_id"
	limitParam       = "limit"

	ToolGetLatestResult = "get_latest_result"
	ToolRunQuery        = "run_query"

	ToolGetLatestResultDescription = "Get the latest results for a specific query ID as a CSV string on Dune Analytics"
	ToolRunQueryDescription        = "Run a query by ID and return results as a CSV string on Dune Analytics"
)

// QueryService is implemented by *service.QueryService.
type QueryService interface {
	Latest(ctx context.Context, queryID int64) (*executor.Result, error)
	Execute(ctx context.Context, queryID int64) (*executor.Result, error)
	Executions(ctx context.Context, queryID int64, limit int) (model.ExecutionList, int64, error)
	Execution(ctx context.Context, id string) (*model.Execution, error)
}

type DuneHandler struct {
	svc QueryService
	// legacyStatus answers 200 for every outcome of the query routes.
	legacyStatus bool
}

func NewDuneHandler(svc QueryService, legacyStatus bool) *DuneHandler {
	return &DuneHandler{svc: svc, legacyStatus: legacyStatus}
}

// Routes returns the router mounted under /dune.
func (h *DuneHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", h.Index)
	router.Get("/health", h.Health)
	router.Route("/query/{"+queryIDParam+":[0-9]+}", func(r chi.Router) {
		r.Get("/latest", h.Latest)
		r.Post("/execute", h.Execute)
		r.Get("/executions", h.Executions)
	})
	router.Get("/executions/{"+executionIDParam+"}", h.Execution)
	return router
}

// (GET /dune/)
func (h *DuneHandler) Index(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, IndexReply{
		Name:        "DuneLink",
		Description: "Bridge between agents and the Dune Analytics API",
		Version:     version.Get().String(),
		Endpoints: []string{
			"GET /dune/health",
			"GET /dune/query/{query_id}/latest",
			"POST /dune/query/{query_id}/execute",
			"GET /dune/query/{query_id}/executions",
			"GET /dune/executions/{execution_id}",
		},
		Tools: []ToolReply{
			{Name: ToolGetLatestResult, Description: ToolGetLatestResultDescription},
			{Name: ToolRunQuery, Description: ToolRunQueryDescription},
		},
	})
}

// (GET /dune/health)
func (h *DuneHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, HealthReply{Status: "healthy", Message: "DuneLink is running"})
}

// (GET /dune/query/{query_id}/latest)
func (h *DuneHandler) Latest(w http.ResponseWriter, r *http.Request) {
	queryID, ok := h.queryID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Latest(r.Context(), queryID)
	h.renderResult(w, r, service.OperationLatest, result, err)
}

// (POST /dune/query/{query_id}/execute)
func (h *DuneHandler) Execute(w http.ResponseWriter, r *http.Request) {
	queryID, ok := h.queryID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Execute(r.Context(), queryID)
	h.renderResult(w, r, service.OperationExecute, result, err)
}

// (GET /dune/query/{query_id}/executions)
func (h *DuneHandler) Executions(w http.ResponseWriter, r *http.Request) {
	queryID, ok := h.queryID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get(limitParam); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			_ = render.Render(w, r, ErrorReply{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	executions, total, err := h.svc.Executions(r.Context(), queryID, limit)
	if err != nil {
		var (
			invalidIDErr    *service.ErrInvalidQueryID
			invalidLimitErr *service.ErrInvalidLimit
			disabledErr     *service.ErrHistoryDisabled
		)
		switch {
		case errors.As(err, &invalidIDErr), errors.As(err, &invalidLimitErr):
			render.Status(r, http.StatusBadRequest)
		case errors.As(err, &disabledErr):
			render.Status(r, http.StatusNotImplemented)
		default:
			zap.S().Named("dune_handler").Errorw("failed to list executions", "query_id", queryID, "error", err)
			render.Status(r, http.StatusInternalServerError)
		}
		_ = render.Render(w, r, ErrorReply{Error: err.Error()})
		return
	}

	_ = render.Render(w, r, NewExecutionsReply(queryID, total, executions))
}

// (GET /dune/executions/{execution_id})
func (h *DuneHandler) Execution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, executionIDParam)
	execution, err := h.svc.Execution(r.Context(), id)
	if err != nil {
		var (
			invalidIDErr *service.ErrInvalidExecutionID
			notFoundErr  *service.ErrExecutionNotFound
			disabledErr  *service.ErrHistoryDisabled
		)
		switch {
		case errors.As(err, &invalidIDErr):
			render.Status(r, http.StatusBadRequest)
		case errors.As(err, &notFoundErr):
			render.Status(r, http.StatusNotFound)
		case errors.As(err, &disabledErr):
			render.Status(r, http.StatusNotImplemented)
		default:
			zap.S().Named("dune_handler").Errorw("failed to get execution", "id", id, "error", err)
			render.Status(r, http.StatusInternalServerError)
		}
		_ = render.Render(w, r, ErrorReply{Error: err.Error()})
		return
	}

	_ = render.Render(w, r, NewExecutionReply(*execution))
}

func (h *DuneHandler) queryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	queryID, err := strconv.ParseInt(chi.URLParam(r, queryIDParam), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		_ = render.Render(w, r, ErrorReply{Error: "query id must be an integer"})
		return 0, false
	}
	return queryID, true
}

func (h *DuneHandler) renderResult(w http.ResponseWriter, r *http.Request, op service.Operation, result *executor.Result, err error) {
	reply := ResultReply{Result: service.ResultText(op, result, err)}
	if err != nil && !h.legacyStatus {
		render.Status(r, StatusCode(err))
		reply.Error = executor.Outcome(nil, err)
		var invalidErr *service.ErrInvalidQueryID
		if errors.As(err, &invalidErr) {
			reply.Error = "invalid_query_id"
		}
	}
	_ = render.Render(w, r, reply)
}

// StatusCode maps a query failure to the HTTP status answered for it.
func StatusCode(err error) int {
	var (
		invalidErr   *service.ErrInvalidQueryID
		transportErr *executor.ErrTransportFailure
		rejectedErr  *executor.ErrSubmissionRejected
		malformedErr *executor.ErrMalformedResponse
		failedErr    *executor.ErrExecutionFailed
		timeoutErr   *executor.ErrTimeout
		cancelledErr *executor.ErrCancelled
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalidErr):
		return http.StatusBadRequest
	case errors.As(err, &transportErr), errors.As(err, &rejectedErr), errors.As(err, &malformedErr):
		return http.StatusBadGateway
	case errors.As(err, &failedErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &cancelledErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
