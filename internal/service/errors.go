package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tripsplit/internal/allocation"
	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/storage"
)

// toConnectError maps domain errors onto Connect codes: invalid input is
// InvalidArgument, missing records are NotFound and everything else is
// Internal.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, allocation.ErrValidation), errors.Is(err, currency.ErrUnknownCurrency):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func invalidArgument(field, format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, allocation.NewValidationError(field, format, args...))
}

func warningKinds(warnings []allocation.Warning) []string {
	kinds := make([]string, len(warnings))
	for i, w := range warnings {
		kinds[i] = string(w.Kind)
	}
	return kinds
}
