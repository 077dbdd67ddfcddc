package errors_test

import (
	"errors"
	"testing"

	berr "github.com/LuizFelipeDev/microrabbit-banking/contract/errors"
)

func TestCodeAndVars(t *testing.T) {
	e := berr.Code(berr.ErrCodePublishUnavailable)
	if e.Error() != berr.ErrCodePublishUnavailable {
		t.Fatalf("unexpected error string: %s", e.Error())
	}

	// exported variables must carry their codes
	tests := []struct {
		err  error
		code string
	}{
		{berr.ErrUnroutableCommand, berr.ErrCodeUnroutableCommand},
		{berr.ErrAmbiguousCommandBinding, berr.ErrCodeAmbiguousCommandBinding},
		{berr.ErrDuplicateCommandBinding, berr.ErrCodeDuplicateCommandBinding},
		{berr.ErrRegistrySealed, berr.ErrCodeRegistrySealed},
		{berr.ErrHandlerTypeMismatch, berr.ErrCodeHandlerTypeMismatch},
		{berr.ErrPublishUnavailable, berr.ErrCodePublishUnavailable},
		{berr.ErrEncodingFailed, berr.ErrCodeEncodingFailed},
		{berr.ErrDecodingFailed, berr.ErrCodeDecodingFailed},
	}

	for _, tc := range tests {
		if !errors.Is(tc.err, berr.Code(tc.code)) {
			t.Fatalf("expected %s to be %s", tc.err, tc.code)
		}
	}
}
