// Package banking holds the transfer domain: its commands, its events, and
// the handlers bound to them.
package banking

import (
	"github.com/google/uuid"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
)

// Wire names. These are the identity of each message on the broker and in
// stored payloads; changing one is a breaking change for every consumer.
const (
	CreateTransferName  = "CreateTransferCommand"
	TransferCreatedName = "TransferCreatedEvent"
)

// CreateTransfer asks the bank to move Amount cents between two accounts.
type CreateTransfer struct {
	cbus.Occurrence

	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

func (CreateTransfer) MessageName() string { return CreateTransferName }

// NewCreateTransfer builds the command with a construction-instant timestamp.
func NewCreateTransfer(from, to uuid.UUID, amount int64) CreateTransfer {
	return CreateTransfer{Occurrence: cbus.NewOccurrence(), From: from, To: to, Amount: amount}
}

// TransferCreated announces a completed balance movement. TransferID lets
// consumers deduplicate redeliveries.
type TransferCreated struct {
	cbus.Occurrence

	TransferID uuid.UUID `json:"transfer_id"`
	From       uuid.UUID `json:"from"`
	To         uuid.UUID `json:"to"`
	Amount     int64     `json:"amount"`
}

func (TransferCreated) MessageName() string { return TransferCreatedName }

var (
	_ cbus.Command = CreateTransfer{}
	_ cbus.Event   = TransferCreated{}
)
