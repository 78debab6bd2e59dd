package http

import (
	"errors"
	"fmt"
	"net/http"

	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/ledger"
	applog "budget/internal/log"
)

type loadResponse struct {
	Outcome ledger.LoadOutcome `json:"outcome"`
	Records int                `json:"records"`
	Error   string             `json:"error,omitempty"`
}

func newLoadResponse(res ledger.LoadResult) loadResponse {
	out := loadResponse{Outcome: res.Outcome, Records: res.Records}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ready(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "backend not ready").Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{"expenses": s.ledger.List()}).Write(w)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AddExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	e, err := s.ledger.Add(ctx, amount, sanitizeInput(req.Category), sanitizeInput(req.Description))
	switch {
	case errors.Is(err, core.ErrValidation):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case errors.Is(err, ledger.ErrStorageWrite):
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Expense kept in memory only", err,
			applog.ComponentHTTP, applog.OpAdd,
			applog.NewFields().WithExpense(e.ID, e.Amount.Cents, e.Category))
		NewResponse().Status(http.StatusInternalServerError).
			JSON(ErrorBody{Error: err.Error(), Expense: e}).Write(w)
		return
	case err != nil:
		InternalServerError(err.Error()).Write(w)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).LogExpenseAdded(ctx, e.ID, e.Amount.Cents, e.Category)
	NewResponse().Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/expenses/%d", e.ID)).
		JSON(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	err = s.ledger.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrNothingSelected):
		NotFoundError(err.Error()).Write(w)
	case err != nil:
		InternalServerError(err.Error()).Write(w)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.Summary()).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{"categories": s.ledger.Categories()}).Write(w)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Save(r.Context()); err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res := s.ledger.Reload(r.Context())
	if res.Outcome == ledger.LoadFailed {
		NewResponse().Status(http.StatusInternalServerError).
			JSON(ErrorBody{Error: res.Err.Error(), Load: newLoadResponse(res)}).Write(w)
		return
	}
	NewResponse().JSON(newLoadResponse(res)).Write(w)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	f, err := export.BuildXLSX(s.ledger.List(), s.ledger.Summary())
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Workbook build failed", err, applog.ComponentExport, applog.OpExport, nil)
		InternalServerError("failed to build workbook").Write(w)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	if err := f.Write(w); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Workbook write failed", applog.FieldError, err)
	}
}
