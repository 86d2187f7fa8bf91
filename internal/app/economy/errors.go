package economy

import (
	"context"
	"errors"
	"net/http"

	"zcoin/internal/earning"
	"zcoin/internal/gamble"
	"zcoin/internal/ledger"
	"zcoin/internal/multiplier"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidFactor  = errors.New("invalid_factor")
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{ErrInvalidRequest, http.StatusBadRequest},
	{ErrInvalidFactor, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{ledger.ErrInvalidAccount, http.StatusBadRequest},
	{ledger.ErrSelfTransfer, http.StatusBadRequest},
	{multiplier.ErrInvalidFactor, http.StatusBadRequest},
	{multiplier.ErrInvalidDuration, http.StatusBadRequest},
	{multiplier.ErrInvalidEntry, http.StatusBadRequest},
	{earning.ErrInvalidFact, http.StatusBadRequest},
	{earning.ErrUnknownTrigger, http.StatusBadRequest},
	{gamble.ErrWagerOutOfRange, http.StatusBadRequest},
	{gamble.ErrSelfMatch, http.StatusBadRequest},
	{gamble.ErrWrongGame, http.StatusBadRequest},

	{ledger.ErrAccountBanned, http.StatusForbidden},
	{gamble.ErrNotParticipant, http.StatusForbidden},

	{ledger.ErrAccountNotFound, http.StatusNotFound},
	{ledger.ErrTransactionNotFound, http.StatusNotFound},
	{gamble.ErrSessionNotFound, http.StatusNotFound},

	{ledger.ErrInsufficientFunds, http.StatusConflict},
	{ledger.ErrIdempotencyConflict, http.StatusConflict},
	{gamble.ErrSessionAlreadySettled, http.StatusConflict},
	{gamble.ErrParticipantThresholdNotMet, http.StatusConflict},

	{gamble.ErrSessionExpired, http.StatusGone},

	{earning.ErrCooldown, http.StatusTooManyRequests},
	{earning.ErrDailyCapReached, http.StatusTooManyRequests},
}

// MapError returns the HTTP status and stable error code for err.
func MapError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal_error"
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	switch {
	case errors.Is(err, gamble.ErrConfigurationInvalid):
		return http.StatusInternalServerError, "configuration_invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
