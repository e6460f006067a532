package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Dan9191/finance-tracker/internal/models"
	"github.com/Dan9191/finance-tracker/internal/service"
	"github.com/Dan9191/finance-tracker/internal/store"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register wires all routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/expenses", h.RecordExpense).Methods("POST")
	r.HandleFunc("/transfers", h.RecordTransfer).Methods("POST")
	r.HandleFunc("/income", h.RecordIncome).Methods("POST")
	r.HandleFunc("/movements/{kind}/{id:[0-9]+}", h.DeleteMovement).Methods("DELETE")
	r.HandleFunc("/balances", h.Balances).Methods("GET")
	r.HandleFunc("/activity", h.ActivityFeed).Methods("GET")
	r.HandleFunc("/accounts/{account}/activity", h.AccountActivity).Methods("GET")
	r.HandleFunc("/accounts/{account}/curve", h.BalanceCurve).Methods("GET")
	r.HandleFunc("/goals", h.Goals).Methods("GET")
	r.HandleFunc("/goals", h.SetGoals).Methods("PUT")
	r.HandleFunc("/goals/progress", h.GoalProgress).Methods("GET")
	r.HandleFunc("/reconcile", h.Reconcile).Methods("POST")
}

type movementRequest struct {
	Date     models.Date `json:"date"`
	Account  string      `json:"account"`
	Source   string      `json:"source_account"`
	Dest     string      `json:"dest_account"`
	Amount   float64     `json:"amount"`
	Category string      `json:"category"`
	Note     string      `json:"note"`
	Comment  string      `json:"comment"`
}

// RecordExpense handles POST /expenses
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &service.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	expense, err := h.svc.RecordExpense(r.Context(), req.Date, req.Account, req.Amount, req.Category, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, expense)
}

// RecordTransfer handles POST /transfers
func (h *Handler) RecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &service.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	transfer, err := h.svc.RecordTransfer(r.Context(), req.Date, req.Source, req.Dest, req.Amount, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, transfer)
}

// RecordIncome handles POST /income
func (h *Handler) RecordIncome(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &service.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	income, err := h.svc.RecordIncome(r.Context(), req.Date, req.Account, req.Amount, req.Category, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, income)
}

// DeleteMovement handles DELETE /movements/{kind}/{id}
func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := models.ParseKind(vars["kind"])
	if err != nil {
		h.writeError(w, &service.ValidationError{Reason: err.Error()})
		return
	}
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, &service.ValidationError{Reason: "invalid movement id"})
		return
	}
	if err := h.svc.Delete(r.Context(), kind, id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Balances handles GET /balances
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.Balances(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]models.AccountBalance, 0, len(balances))
	for _, account := range models.Accounts() {
		out = append(out, models.AccountBalance{
			Account:  account,
			Balance:  balances[account],
			IsCredit: models.IsCreditAccount(account),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ActivityFeed handles GET /activity
func (h *Handler) ActivityFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.svc.ActivityFeed(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, feed)
}

// AccountActivity handles GET /accounts/{account}/activity?days=7|30
func (h *Handler) AccountActivity(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	days, err := lookbackDays(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries, err := h.svc.AccountActivity(r.Context(), account, days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// BalanceCurve handles GET /accounts/{account}/curve?days=7|30
func (h *Handler) BalanceCurve(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	days, err := lookbackDays(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	curve, err := h.svc.BalanceCurve(r.Context(), account, days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, curve)
}

// Goals handles GET /goals
func (h *Handler) Goals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.svc.Goals(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, goals)
}

// SetGoals handles PUT /goals
func (h *Handler) SetGoals(w http.ResponseWriter, r *http.Request) {
	var goals models.Goals
	if err := json.NewDecoder(r.Body).Decode(&goals); err != nil {
		h.writeError(w, &service.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	if err := h.svc.SetGoals(r.Context(), goals); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, goals)
}

// GoalProgress handles GET /goals/progress
func (h *Handler) GoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.GoalProgress(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, progress)
}

// Reconcile handles POST /reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.RecomputeBalances(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balances)
}

// The UI offers two lookback windows; anything else is rejected.
func lookbackDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 7, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || (days != 7 && days != 30) {
		return 0, &service.ValidationError{Reason: "days must be 7 or 30"}
	}
	return days, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case service.IsValidation(err):
		status = http.StatusBadRequest
	case service.IsNotFound(err):
		status = http.StatusNotFound
	case store.IsFatal(err):
		status = http.StatusBadGateway
		h.log.Errorf("Store failure: %v", err)
	default:
		h.log.Errorf("Unexpected error: %v", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
