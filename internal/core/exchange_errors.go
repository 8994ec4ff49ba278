package core

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrConfiguration matches any *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport matches any *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrParse matches any *ParseError.
	ErrParse = errors.New("parse error")
)

var (
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient funds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateOrder indicates the client order id has already been accepted before.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by exchange for an unclassified reason.
	ErrOrderRejected = errors.New("order rejected")
	ErrInvalidPrice  = errors.New("invalid price")
	// ErrInvalidQuantity also covers notional minimums.
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	// ErrUnsupported marks an operation the exchange does not offer at all.
	ErrUnsupported = errors.New("operation not supported")
	// ErrCancelFailed is the rejection kind reported when a cancel or a
	// position close was not confirmed and the follow-up step was skipped.
	ErrCancelFailed = errors.New("cancel not confirmed")
)

type ConfigurationError struct {
	Exchange string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Exchange, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// TransportError is a network failure (Status 0) or a non-2xx response.
type TransportError struct {
	Method string
	URL    string
	Status int
	Body   []byte
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: http status %d: %s", e.Method, e.URL, e.Status, truncate(string(e.Body), 256))
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

type ParseError struct {
	Exchange string
	Entity   string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	msg := e.Exchange + ": parse " + e.Entity
	if e.Field != "" {
		msg += ": field " + strconv.Quote(e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else {
		msg += ": missing"
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Rejection is an exchange declining an operation. It is carried in results,
// not returned as an error, so batch callers can move on to the next symbol.
type Rejection struct {
	Kind    error
	Code    string
	Message string
}

func NewRejection(kind error, code, msg string) *Rejection {
	if kind == nil {
		kind = ErrOrderRejected
	}
	return &Rejection{Kind: kind, Code: code, Message: msg}
}

func (r *Rejection) Error() string {
	msg := r.Kind.Error()
	if r.Code != "" {
		msg += " [" + r.Code + "]"
	}
	if r.Message != "" {
		msg += ": " + r.Message
	}
	return msg
}

func (r *Rejection) Unwrap() error { return r.Kind }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
