package kraken

import (
	"errors"
	"strings"

	"exchange-gateway/internal/core"
)

var apiErrorKinds = map[string]error{
	"eorder:insufficient funds":           core.ErrInsufficientBalance,
	"eorder:insufficient margin":          core.ErrInsufficientBalance,
	"eorder:margin allowance exceeded":    core.ErrInsufficientBalance,
	"efunding:insufficient funds":         core.ErrInsufficientBalance,
	"eorder:order minimum not met":        core.ErrInvalidQuantity,
	"eorder:cost minimum not met":         core.ErrInvalidQuantity,
	"egeneral:invalid arguments:volume":   core.ErrInvalidQuantity,
	"eorder:invalid price":                core.ErrInvalidPrice,
	"egeneral:invalid arguments:price":    core.ErrInvalidPrice,
	"equery:unknown asset pair":           core.ErrUnknownSymbol,
	"egeneral:invalid arguments:pair":     core.ErrUnknownSymbol,
	"eorder:unknown order":                core.ErrOrderNotFound,
	"eorder:invalid order":                core.ErrOrderNotFound,
	"eorder:duplicate order":              core.ErrDuplicateOrder,
	"eorder:trading agreement required":   core.ErrUnsupported,
	"eorder:margin level too low":         core.ErrOrderRejected,
	"eorder:positions limit exceeded":     core.ErrOrderRejected,
	"eorder:orders limit exceeded":        core.ErrOrderRejected,
}

// checkEnvelope reports the first error entry. Warning entries ("W...") are ignored.
func checkEnvelope(env envelope) error {
	for _, raw := range env.Error {
		if strings.HasPrefix(raw, "E") {
			return classifyAPIError(parseAPIError(raw))
		}
	}
	return nil
}

// credentialErrors are reported as configuration errors; retrying cannot help.
var credentialErrors = map[string]bool{
	"eapi:invalid key":           true,
	"eapi:invalid signature":     true,
	"egeneral:permission denied": true,
}

func classifyAPIError(apiErr APIError) error {
	if credentialErrors[strings.ToLower(strings.TrimSpace(apiErr.Code+":"+apiErr.Msg))] {
		return errors.Join(apiErr, &core.ConfigurationError{Exchange: Name, Reason: apiErr.Code + ":" + apiErr.Msg})
	}
	kind := classifyAPIErrorKind(apiErr)
	if kind == nil {
		return apiErr
	}
	return errors.Join(apiErr, kind)
}

func classifyAPIErrorKind(apiErr APIError) error {
	key := strings.ToLower(strings.TrimSpace(apiErr.Code + ":" + apiErr.Msg))
	if kind, ok := apiErrorKinds[key]; ok {
		return kind
	}
	// Kraken appends details to some messages ("EGeneral:Invalid arguments:volume minimum ...").
	for prefix, kind := range apiErrorKinds {
		if strings.HasPrefix(key, prefix) {
			return kind
		}
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
