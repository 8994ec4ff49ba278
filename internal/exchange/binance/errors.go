package binance

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"exchange-gateway/internal/core"
)

const (
	apiCodeFilterFailure    = -1013
	apiCodeTooMuchPrecision = -1111
	apiCodeBadSymbol        = -1121
	apiCodeNewOrderRejected = -2010
	apiCodeCancelRejected   = -2011
	apiCodeOrderNotFound    = -2013
	apiCodeBadSignature     = -1022
	apiCodeRejectedMBXKey   = -2014
	apiCodeInvalidAPIKey    = -2015
)

var apiErrorMessageKinds = map[string]error{
	"duplicate order sent.":                                  core.ErrDuplicateOrder,
	"account has insufficient balance for requested action.": core.ErrInsufficientBalance,
	"balance is insufficient.":                               core.ErrInsufficientBalance,
	"unknown order sent.":                                    core.ErrOrderNotFound,
	"order does not exist.":                                  core.ErrOrderNotFound,
	"invalid symbol.":                                        core.ErrUnknownSymbol,
}

// apiErrorFrom extracts a Binance API error from a non-2xx transport failure.
// 5xx, auth (401/403), IP ban (418) and rate limit (429) responses stay
// transport errors even when they carry a code.
func apiErrorFrom(err error) (APIError, bool) {
	var te *core.TransportError
	if !errors.As(err, &te) || te.Status == 0 || te.Status >= http.StatusInternalServerError {
		return APIError{}, false
	}
	switch te.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTeapot, http.StatusTooManyRequests:
		return APIError{}, false
	}
	var raw apiError
	if jsonErr := json.Unmarshal(te.Body, &raw); jsonErr != nil || raw.Msg == "" {
		return APIError{}, false
	}
	return APIError{Code: raw.Code, Msg: raw.Msg}, true
}

// classifyAPIError joins the API error with the core error kind it maps to so
// callers can use errors.Is against core sentinels.
func classifyAPIError(apiErr APIError) error {
	switch apiErr.Code {
	case apiCodeBadSignature, apiCodeRejectedMBXKey, apiCodeInvalidAPIKey:
		return errors.Join(apiErr, &core.ConfigurationError{Exchange: Name, Reason: apiErr.Msg})
	}
	kind := classifyAPIErrorKind(apiErr)
	if kind == nil {
		return apiErr
	}
	return errors.Join(apiErr, kind)
}

func classifyAPIErrorKind(apiErr APIError) error {
	normalizedMsg := normalizeAPIErrorMsg(apiErr.Msg)
	if kind, ok := apiErrorMessageKinds[normalizedMsg]; ok {
		return kind
	}
	switch apiErr.Code {
	case apiCodeOrderNotFound, apiCodeCancelRejected:
		return core.ErrOrderNotFound
	case apiCodeBadSymbol:
		return core.ErrUnknownSymbol
	case apiCodeTooMuchPrecision:
		return core.ErrInvalidQuantity
	case apiCodeFilterFailure:
		if strings.Contains(normalizedMsg, "price") {
			return core.ErrInvalidPrice
		}
		return core.ErrInvalidQuantity
	case apiCodeNewOrderRejected:
		return core.ErrOrderRejected
	}
	return nil
}

// rejectionFor reports ok only for business refusals. Clock skew, auth and
// other request-level failures have no kind and must stay errors.
func rejectionFor(apiErr APIError) (*core.Rejection, bool) {
	kind := classifyAPIErrorKind(apiErr)
	if kind == nil {
		return nil, false
	}
	return core.NewRejection(kind, strconv.Itoa(apiErr.Code), apiErr.Msg), true
}

func normalizeAPIErrorMsg(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
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

func IsAPIErrorCode(err error, codes ...int) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
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
