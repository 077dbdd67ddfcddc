// Package api is the HTTP face of the bank. It translates requests into
// commands and queries; all business behavior lives in the handlers behind
// the dispatcher.
package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	"github.com/LuizFelipeDev/microrabbit-banking/internal/storage"
)

// TransferReader serves the read endpoints. *storage.Storage satisfies it.
type TransferReader interface {
	Account(ctx context.Context, id uuid.UUID) (storage.Account, error)
	ListTransfersPaginated(ctx context.Context, cursor string, limit int) ([]storage.Transfer, string, error)
}

type API struct {
	Dispatcher cbus.Dispatcher
	Store      TransferReader
	Logger     *slog.Logger
}

func NewAPI(d cbus.Dispatcher, store TransferReader, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}

	return &API{Dispatcher: d, Store: store, Logger: logger}
}
