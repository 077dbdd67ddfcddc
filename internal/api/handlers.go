package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/banking"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/metrics"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/storage"
)

const listPageSize = 20

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/transfers", a.CreateTransfer)
	r.Get("/transfers", a.ListTransfers)
	r.Get("/accounts/{id}", a.GetAccount)
	r.Handle("/metrics", metrics.Handler())

	return r
}

type createTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func (a *API) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var body createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	from, err := uuid.Parse(body.From)
	if err != nil {
		http.Error(w, "invalid from account id", http.StatusBadRequest)
		return
	}

	to, err := uuid.Parse(body.To)
	if err != nil {
		http.Error(w, "invalid to account id", http.StatusBadRequest)
		return
	}

	cmd := banking.NewCreateTransfer(from, to, body.Amount)

	if _, err := a.Dispatcher.Dispatch(r.Context(), cmd); err != nil {
		a.Logger.ErrorContext(r.Context(), "create transfer failed", "from", from, "to", to, "err", err)
		status := transferStatus(err)
		http.Error(w, err.Error(), status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]bool{"created": true})
}

func transferStatus(err error) int {
	switch {
	case errors.Is(err, banking.ErrInvalidTransfer):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, berr.ErrPublishUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	acct, err := a.Store.Account(r.Context(), id)
	if errors.Is(err, storage.ErrAccountNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(acct)
}

func (a *API) ListTransfers(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")

	transfers, nextCursor, err := a.Store.ListTransfersPaginated(r.Context(), cursor, listPageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"data":        transfers,
		"next_cursor": nextCursor,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
