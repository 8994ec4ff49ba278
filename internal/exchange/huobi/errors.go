package huobi

import (
	"errors"
	"strings"

	"exchange-gateway/internal/core"
)

var apiErrorCodeKinds = map[string]error{
	"account-frozen-balance-insufficient-error": core.ErrInsufficientBalance,
	"account-balance-insufficient-error":        core.ErrInsufficientBalance,
	"insufficient-balance":                      core.ErrInsufficientBalance,
	"order-limitorder-price-min-error":          core.ErrInvalidPrice,
	"order-limitorder-price-max-error":          core.ErrInvalidPrice,
	"order-orderprice-precision-error":          core.ErrInvalidPrice,
	"order-price-greater-than-limit":            core.ErrInvalidPrice,
	"order-price-less-than-limit":               core.ErrInvalidPrice,
	"order-limitorder-amount-min-error":         core.ErrInvalidQuantity,
	"order-limitorder-amount-max-error":         core.ErrInvalidQuantity,
	"order-marketorder-amount-min-error":        core.ErrInvalidQuantity,
	"order-orderamount-precision-error":         core.ErrInvalidQuantity,
	"order-value-min-error":                     core.ErrInvalidQuantity,
	"base-symbol-error":                         core.ErrUnknownSymbol,
	"base-symbol-trade-disabled":                core.ErrUnknownSymbol,
	"invalid-symbol":                            core.ErrUnknownSymbol,
	"base-record-invalid":                       core.ErrOrderNotFound,
	"order-orderstate-error":                    core.ErrOrderNotFound,
	"order-queryorder-invalid":                  core.ErrOrderNotFound,
	"order-duplicate-client-order-id":           core.ErrDuplicateOrder,
	"account-get-accounts-inexistent-error":     core.ErrUnsupported,
}

// checkEnvelope turns a status "error" envelope into an APIError.
func checkEnvelope(env envelope) error {
	if env.Status == "" || strings.EqualFold(env.Status, "ok") {
		return nil
	}
	return classifyAPIError(APIError{Code: env.ErrCode, Msg: env.ErrMsg})
}

// credentialErrors are reported as configuration errors; retrying cannot help.
var credentialErrors = map[string]bool{
	"api-signature-not-valid":    true,
	"api-signature-check-failed": true,
	"login-required":             true,
}

func classifyAPIError(apiErr APIError) error {
	if credentialErrors[strings.ToLower(strings.TrimSpace(apiErr.Code))] {
		return errors.Join(apiErr, &core.ConfigurationError{Exchange: Name, Reason: apiErr.Code + ": " + apiErr.Msg})
	}
	kind := classifyAPIErrorKind(apiErr)
	if kind == nil {
		return apiErr
	}
	return errors.Join(apiErr, kind)
}

func classifyAPIErrorKind(apiErr APIError) error {
	code := strings.ToLower(strings.TrimSpace(apiErr.Code))
	if kind, ok := apiErrorCodeKinds[code]; ok {
		return kind
	}
	msg := strings.ToLower(apiErr.Msg)
	switch {
	case strings.Contains(msg, "insufficient"):
		return core.ErrInsufficientBalance
	case strings.Contains(msg, "invalid symbol"):
		return core.ErrUnknownSymbol
	}
	return nil
}

// rejectionFor reports ok only for business refusals. Auth, nonce, rate limit
// and service failures have no kind and must stay errors.
func rejectionFor(apiErr APIError) (*core.Rejection, bool) {
	kind := classifyAPIErrorKind(apiErr)
	if kind == nil {
		return nil, false
	}
	return core.NewRejection(kind, apiErr.Code, apiErr.Msg), true
}

func AsAPIError(err error) (APIError, bool) {
	if err == nil {
		return APIError{}, false
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}

// businessRejection reports err as a rejection when it is an API error with a
// business kind. Everything else is returned to the caller as an error.
func businessRejection(err error) (*core.Rejection, bool) {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return nil, false
	}
	return rejectionFor(apiErr)
}
