package exchange

import (
	"net/http"

	"github.com/xor-engine/corebot/errs"
)

// ErrorFromHTTP builds a canonical *errs.E from a venue's HTTP status and raw
// body, classifying into the shared taxonomy: connection, auth, order
// rejected, rate limited, invalid parameter, or unknown.
func ErrorFromHTTP(exchange string, status int, rawCode, rawMsg string) *errs.E {
	switch {
	case status == http.StatusTooManyRequests:
		return errs.New(exchange, errs.CodeRateLimited, errs.WithHTTP(status), errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg),
			errs.WithCanonicalCode(errs.CanonicalRateLimited))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(exchange, errs.CodeAuth, errs.WithHTTP(status), errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errs.New(exchange, errs.CodeInvalid, errs.WithHTTP(status), errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg))
	case status >= http.StatusInternalServerError:
		return errs.New(exchange, errs.CodeExchange, errs.WithHTTP(status), errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg))
	default:
		return errs.New(exchange, errs.CodeExchange, errs.WithHTTP(status), errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg),
			errs.WithCanonicalCode(errs.CanonicalUnknown))
	}
}

// ConnectionError wraps a transport-level failure (dial, timeout, reset).
func ConnectionError(exchange string, cause error) *errs.E {
	return errs.New(exchange, errs.CodeNetwork, errs.WithCause(cause), errs.WithMessage("connection failure"))
}

// OrderRejectedError wraps a venue-reported order rejection.
func OrderRejectedError(exchange, rawCode, rawMsg string) *errs.E {
	return errs.New(exchange, errs.CodeInvalid, errs.WithRawCode(rawCode), errs.WithRawMessage(rawMsg),
		errs.WithMessage("order rejected"))
}
