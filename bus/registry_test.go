package bus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LuizFelipeDev/microrabbit-banking/bus"
	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

// shared fixtures for the bus tests

type depositFunds struct {
	cbus.Occurrence
	Account string  `json:"account"`
	Amount  float64 `json:"amount"`
}

func (depositFunds) MessageName() string { return "DepositFundsCommand" }

type fundsDeposited struct {
	cbus.Occurrence
	Account string  `json:"account"`
	Amount  float64 `json:"amount"`
}

func (fundsDeposited) MessageName() string { return "FundsDepositedEvent" }

type depositHandler struct {
	seen   []depositFunds
	result bool
	err    error
}

func (h *depositHandler) Handle(ctx context.Context, c depositFunds) (bool, error) {
	h.seen = append(h.seen, c)
	return h.result, h.err
}

type recordDeposit struct {
	calls []fundsDeposited
	err   error
}

func (h *recordDeposit) Handle(ctx context.Context, e fundsDeposited) error {
	h.calls = append(h.calls, e)
	return h.err
}

type notifyDeposit struct {
	calls []fundsDeposited
}

func (h *notifyDeposit) Handle(ctx context.Context, e fundsDeposited) error {
	h.calls = append(h.calls, e)
	return nil
}

func TestRegistry_DuplicateCommandBinding(t *testing.T) {
	r := bus.NewRegistry()

	if err := bus.BindCommand(r, &depositHandler{result: true}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	err := bus.BindCommand(r, &depositHandler{})
	if !errors.Is(err, berr.ErrDuplicateCommandBinding) {
		t.Fatalf("want ErrDuplicateCommandBinding, got %v", err)
	}
}

func TestRegistry_ResolveUnroutable(t *testing.T) {
	r := bus.NewRegistry()

	_, err := r.ResolveCommand("DepositFundsCommand")
	if !errors.Is(err, berr.ErrUnroutableCommand) {
		t.Fatalf("want ErrUnroutableCommand, got %v", err)
	}
}

func TestRegistry_SealRejectsLateBinds(t *testing.T) {
	r := bus.NewRegistry()
	r.Seal()

	if err := bus.BindCommand(r, &depositHandler{}); !errors.Is(err, berr.ErrRegistrySealed) {
		t.Fatalf("want ErrRegistrySealed, got %v", err)
	}

	if err := bus.BindEvent(r, &recordDeposit{}); !errors.Is(err, berr.ErrRegistrySealed) {
		t.Fatalf("want ErrRegistrySealed, got %v", err)
	}
}

func TestRegistry_EventBindingQueueNames(t *testing.T) {
	r := bus.NewRegistry()

	if err := bus.BindEvent(r, &recordDeposit{}); err != nil {
		t.Fatalf("bind first: %v", err)
	}

	if err := bus.BindEvent(r, &notifyDeposit{}); err != nil {
		t.Fatalf("bind second: %v", err)
	}

	bindings := r.ResolveEvents("FundsDepositedEvent")
	if len(bindings) != 2 {
		t.Fatalf("bindings=%d", len(bindings))
	}

	// First binding uses the event name exactly; later ones get their own queue.
	if bindings[0].Queue != "FundsDepositedEvent" {
		t.Fatalf("first queue: %s", bindings[0].Queue)
	}

	if bindings[1].Queue != "FundsDepositedEvent.notifyDeposit" {
		t.Fatalf("second queue: %s", bindings[1].Queue)
	}
}

func TestRegistry_BindEventQueueCollision(t *testing.T) {
	r := bus.NewRegistry()

	if err := bus.BindEventQueue(r, &recordDeposit{}, "audit"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if err := bus.BindEventQueue(r, &notifyDeposit{}, "audit"); err == nil {
		t.Fatalf("expected collision error")
	}
}

func TestRegistry_ResolveEventsEmptyIsValid(t *testing.T) {
	r := bus.NewRegistry()

	if got := r.ResolveEvents("FundsDepositedEvent"); len(got) != 0 {
		t.Fatalf("got %d bindings", len(got))
	}
}
