package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
)

var (
	// ErrInvalidTransfer rejects a command before it touches storage.
	ErrInvalidTransfer = errors.New("banking: invalid transfer")
)

// Ledger moves balances between accounts. *storage.Storage satisfies it.
type Ledger interface {
	MoveFunds(ctx context.Context, from, to uuid.UUID, amount int64) error
}

// TransferLog persists completed transfers. Insert reports false when the
// transfer id was already recorded.
type TransferLog interface {
	InsertTransfer(ctx context.Context, id, from, to uuid.UUID, amount int64, at time.Time) (bool, error)
}

// CreateTransferHandler moves the funds and announces the result. The
// balance movement and the event publication are the handler's only side
// effects.
type CreateTransferHandler struct {
	ledger    Ledger
	publisher cbus.EventPublisher
	logger    *slog.Logger
}

var _ cbus.CommandHandler[CreateTransfer, bool] = (*CreateTransferHandler)(nil)

// NewCreateTransferHandler wires the command handler.
func NewCreateTransferHandler(l Ledger, p cbus.EventPublisher, logger *slog.Logger) *CreateTransferHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &CreateTransferHandler{ledger: l, publisher: p, logger: logger}
}

// Handle validates the command, moves the balance, and publishes
// TransferCreated. It reports true once both the movement and the broker
// accept have happened.
func (h *CreateTransferHandler) Handle(ctx context.Context, cmd CreateTransfer) (bool, error) {
	if cmd.Amount <= 0 {
		return false, fmt.Errorf("%w: amount %d", ErrInvalidTransfer, cmd.Amount)
	}

	if cmd.From == cmd.To {
		return false, fmt.Errorf("%w: same account %s", ErrInvalidTransfer, cmd.From)
	}

	if err := h.ledger.MoveFunds(ctx, cmd.From, cmd.To, cmd.Amount); err != nil {
		return false, fmt.Errorf("create transfer: %w", err)
	}

	evt := TransferCreated{
		Occurrence: cbus.NewOccurrence(),
		TransferID: uuid.New(),
		From:       cmd.From,
		To:         cmd.To,
		Amount:     cmd.Amount,
	}

	if err := h.publisher.Publish(ctx, evt); err != nil {
		return false, fmt.Errorf("create transfer %s: %w", evt.TransferID, err)
	}

	h.logger.InfoContext(ctx, "transfer created",
		"transfer_id", evt.TransferID, "from", cmd.From, "to", cmd.To, "amount", cmd.Amount)

	return true, nil
}

// RecordTransferHandler persists published transfers. Redeliveries are
// expected under at-least-once consumption, so the insert keys on the
// transfer id and a duplicate is a success.
type RecordTransferHandler struct {
	log    TransferLog
	logger *slog.Logger
}

var _ cbus.EventHandler[TransferCreated] = (*RecordTransferHandler)(nil)

// NewRecordTransferHandler wires the persisting event handler.
func NewRecordTransferHandler(l TransferLog, logger *slog.Logger) *RecordTransferHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordTransferHandler{log: l, logger: logger}
}

func (h *RecordTransferHandler) Handle(ctx context.Context, evt TransferCreated) error {
	inserted, err := h.log.InsertTransfer(ctx, evt.TransferID, evt.From, evt.To, evt.Amount, evt.OccurredAt())
	if err != nil {
		return fmt.Errorf("record transfer %s: %w", evt.TransferID, err)
	}

	if !inserted {
		h.logger.InfoContext(ctx, "transfer already recorded", "transfer_id", evt.TransferID)
	}

	return nil
}

// TransferLogHandler is a second, independent consumer of TransferCreated.
// It only logs, but it runs on its own queue so it receives its own copy of
// every event.
type TransferLogHandler struct {
	logger *slog.Logger
}

var _ cbus.EventHandler[TransferCreated] = (*TransferLogHandler)(nil)

// NewTransferLogHandler wires the logging event handler.
func NewTransferLogHandler(logger *slog.Logger) *TransferLogHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &TransferLogHandler{logger: logger}
}

func (h *TransferLogHandler) Handle(ctx context.Context, evt TransferCreated) error {
	h.logger.InfoContext(ctx, "transfer observed",
		"transfer_id", evt.TransferID, "from", evt.From, "to", evt.To,
		"amount", evt.Amount, "occurred_at", evt.OccurredAt())

	return nil
}
