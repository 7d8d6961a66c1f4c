// Package httpapi exposes the REST API for plans, transactions, balances and
// the admin approval endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/ameer851/axix-finance-sub002/internal/app"
	"github.com/ameer851/axix-finance-sub002/internal/app/auth"
	"github.com/ameer851/axix-finance-sub002/internal/app/domain/transaction"
	"github.com/ameer851/axix-finance-sub002/internal/app/metrics"
	"github.com/ameer851/axix-finance-sub002/internal/app/services/approvals"
	txsvc "github.com/ameer851/axix-finance-sub002/internal/app/services/transactions"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API. Authentication is
// layered on by the caller via AuthMiddleware.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/plans", h.listPlans).Methods(http.MethodGet)
	r.HandleFunc("/plans/recommend", h.recommendPlan).Methods(http.MethodGet)
	r.HandleFunc("/plans/{id}/projection", h.projectPlan).Methods(http.MethodGet)

	r.HandleFunc("/transactions", h.createTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}", h.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}/{action}", h.transition).Methods(http.MethodPost)

	r.HandleFunc("/users/{id}/balance", h.userBalance).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/transactions", h.userTransactions).Methods(http.MethodGet)

	r.HandleFunc("/admin/transactions/pending", h.pendingTransactions).Methods(http.MethodGet)
	r.HandleFunc("/admin/transactions/{action}", h.bulkTransition).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Plans.List())
}

func (h *handler) recommendPlan(w http.ResponseWriter, r *http.Request) {
	amount, err := queryFloat(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, ok := h.app.Plans.Recommend(amount)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no plan accepts this amount"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) projectPlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	amount, err := queryFloat(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	base := 0.0
	if r.URL.Query().Get("base") != "" {
		if base, err = queryFloat(r, "base"); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("days must be an integer"))
			return
		}
	}
	proj, err := h.app.Plans.Project(planID, amount, base, days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (h *handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	var payload struct {
		UserID   string  `json:"user_id"`
		Kind     string  `json:"kind"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Method   string  `json:"method"`
		PlanID   string  `json:"plan_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userID := payload.UserID
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID && actor.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, auth.ErrForbidden)
		return
	}
	tx, err := h.app.Transactions.Create(r.Context(), txsvc.CreateInput{
		UserID:   userID,
		Kind:     transaction.Kind(payload.Kind),
		Amount:   payload.Amount,
		Currency: payload.Currency,
		Method:   payload.Method,
		PlanID:   payload.PlanID,
	})
	if err != nil {
		status := domainStatus(err)
		if status == http.StatusInternalServerError {
			// Malformed submissions surface as plain validation errors.
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	tx, err := h.app.Transactions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tx.UserID != actor.ID && actor.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, auth.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	vars := mux.Vars(r)
	var payload struct {
		Reason string `json:"reason"`
	}
	// The body is optional, and chunked requests report no length, so
	// decode unconditionally and treat an empty body as no payload.
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := h.app.Approvals.ApplySingle(r.Context(), vars["id"],
		transaction.Action(vars["action"]), payload.Reason, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *handler) userBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	userID := mux.Vars(r)["id"]
	if userID != actor.ID && actor.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, auth.ErrForbidden)
		return
	}
	bal, err := h.app.Transactions.Balance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *handler) userTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	userID := mux.Vars(r)["id"]
	if userID != actor.ID && actor.Role != auth.RoleAdmin {
		writeError(w, http.StatusForbidden, auth.ErrForbidden)
		return
	}
	txs, err := h.app.Transactions.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) pendingTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	if err := h.app.Authorizer.Authorize(r.Context(), actor, auth.RoleAdmin); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	kind := transaction.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = transaction.KindWithdrawal
	}
	txs, err := h.app.Transactions.ListPendingByKind(r.Context(), kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) bulkTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	var payload struct {
		IDs    []string `json:"ids"`
		Reason string   `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(payload.IDs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("ids must not be empty"))
		return
	}
	result := h.app.Approvals.ApplyBulk(r.Context(), payload.IDs,
		transaction.Action(mux.Vars(r)["action"]), payload.Reason, actor)
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps service errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, domainStatus(err), err)
}

func domainStatus(err error) int {
	switch approvals.ClassifyError(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "invalid_transition":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "insufficient_funds", "validation":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " query parameter is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return v, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
