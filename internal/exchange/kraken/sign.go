package kraken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strconv"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

const (
	apiKeyHeader  = "API-Key"
	apiSignHeader = "API-Sign"
)

// Signer authenticates private calls: the form body starts with a nonce and
// API-Sign is HMAC-SHA512(base64-decoded secret, path + SHA256(nonce + body)).
type Signer struct {
	creds exchange.Credentials
	nonce *Nonce
}

// NewSigner builds a signer drawing from nonce. A nil nonce gets a private
// counter, which is only safe when no other client uses the same key.
func NewSigner(creds exchange.Credentials, nonce *Nonce) *Signer {
	if nonce == nil {
		nonce = NewNonce()
	}
	return &Signer{creds: creds, nonce: nonce}
}

func (s *Signer) Sign(req exchange.SignRequest) (exchange.Signed, error) {
	if s.creds == nil || s.creds.Key() == "" || s.creds.Secret() == "" {
		return exchange.Signed{}, &core.ConfigurationError{Exchange: Name, Reason: "api key and secret are required"}
	}
	secret, err := base64.StdEncoding.DecodeString(s.creds.Secret())
	if err != nil {
		return exchange.Signed{}, &core.ConfigurationError{Exchange: Name, Reason: "api secret is not valid base64"}
	}
	nonce := strconv.FormatInt(s.nonce.Next(), 10)
	body := append(exchange.NewParams("nonce", nonce), req.Params...).Encode()
	return exchange.Signed{
		Body: body,
		Header: map[string]string{
			apiKeyHeader:   s.creds.Key(),
			apiSignHeader:  sign(secret, req.Path, nonce, body),
			"Content-Type": "application/x-www-form-urlencoded",
		},
	}, nil
}

func sign(secret []byte, path, nonce, body string) string {
	digest := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
