package wire_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	cbus "github.com/LuizFelipeDev/microrabbit-banking/contract/bus"
	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
	"github.com/LuizFelipeDev/microrabbit-banking/wire"
)

const paymentSettledName = "PaymentSettledEvent"

type paymentSettled struct {
	cbus.Occurrence
	Ref    string  `json:"ref"`
	Amount float64 `json:"amount"`
}

func (paymentSettled) MessageName() string { return paymentSettledName }

type badPayload struct {
	cbus.Occurrence
	Ch chan int `json:"ch"`
}

func (badPayload) MessageName() string { return "BadPayloadEvent" }

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := paymentSettled{Occurrence: cbus.NewOccurrence(), Ref: "p-7", Amount: 100.00}

	data, err := wire.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if !strings.Contains(string(data), `"message_type":"PaymentSettledEvent"`) {
		t.Fatalf("missing type tag: %s", data)
	}

	out, err := wire.Decode[paymentSettled](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Ref != in.Ref || out.Amount != in.Amount {
		t.Fatalf("fields: %+v", out)
	}

	if !out.OccurredAt().Equal(in.OccurredAt()) {
		t.Fatalf("timestamp: want %v, got %v", in.OccurredAt(), out.OccurredAt())
	}
}

func TestDecode_ToleratesUnknownFields(t *testing.T) {
	data := []byte(`{"message_type":"PaymentSettledEvent","timestamp":"2026-01-02T03:04:05Z","ref":"p-1","amount":5,"added_later":"x"}`)

	out, err := wire.Decode[paymentSettled](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Ref != "p-1" || out.Amount != 5 {
		t.Fatalf("fields: %+v", out)
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "{"},
		{"missing type", `{"ref":"p-1"}`},
		{"wrong type tag", `{"message_type":"OtherEvent","ref":"p-1"}`},
		{"wrong primitive", `{"message_type":"PaymentSettledEvent","amount":"not-a-number"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wire.Decode[paymentSettled]([]byte(tc.data))
			if !errors.Is(err, berr.ErrDecodingFailed) {
				t.Fatalf("want ErrDecodingFailed, got %v", err)
			}
		})
	}
}

func TestEncode_NonSerializableField(t *testing.T) {
	_, err := wire.Encode(badPayload{Ch: make(chan int)})
	if !errors.Is(err, berr.ErrEncodingFailed) {
		t.Fatalf("want ErrEncodingFailed, got %v", err)
	}
}

func TestPeekName(t *testing.T) {
	data, err := wire.Encode(paymentSettled{Occurrence: cbus.NewOccurrence(), Ref: "p-2"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	name, err := wire.PeekName(data)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}

	if name != paymentSettledName {
		t.Fatalf("name=%s", name)
	}

	if _, err := wire.PeekName([]byte(`{}`)); !errors.Is(err, berr.ErrDecodingFailed) {
		t.Fatalf("want ErrDecodingFailed, got %v", err)
	}
}

func TestEncode_FlatDocument(t *testing.T) {
	data, err := wire.Encode(paymentSettled{Occurrence: cbus.NewOccurrence(), Ref: "p-3", Amount: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{"message_type", "timestamp", "ref", "amount"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("missing %q in %v", key, doc)
		}
	}
}
