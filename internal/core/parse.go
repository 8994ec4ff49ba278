package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// RequireDecimal parses a required monetary field, reporting a *ParseError
// naming the field when it is absent or malformed.
func RequireDecimal(exchange, entity, field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &ParseError{Exchange: exchange, Entity: entity, Field: field}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ParseError{Exchange: exchange, Entity: entity, Field: field, Err: err}
	}
	return v, nil
}

// OptionalDecimal parses raw, falling back to def when it is empty or malformed.
func OptionalDecimal(raw string, def decimal.Decimal) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return v
}

// PositiveOr returns v when it is strictly positive, def otherwise.
func PositiveOr(v, def decimal.Decimal) decimal.Decimal {
	if v.Cmp(decimal.Zero) > 0 {
		return v
	}
	return def
}

func RequireString(exchange, entity, field, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ParseError{Exchange: exchange, Entity: entity, Field: field}
	}
	return raw, nil
}

// DecodeJSON unmarshals body into v, reporting malformed payloads as *ParseError.
func DecodeJSON(exchange, entity string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &ParseError{Exchange: exchange, Entity: entity, Err: err}
	}
	return nil
}
