package huobi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

const timestampLayout = "2006-01-02T15:04:05"

// Signer implements signature version 2. GET parameters are part of the
// signed set; POST parameters travel as a JSON body and only the auth
// parameters are signed.
type Signer struct {
	creds exchange.Credentials
	now   func() time.Time
}

func NewSigner(creds exchange.Credentials) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

func (s *Signer) Sign(req exchange.SignRequest) (exchange.Signed, error) {
	if s.creds == nil || s.creds.Key() == "" || s.creds.Secret() == "" {
		return exchange.Signed{}, &core.ConfigurationError{Exchange: Name, Reason: "api key and secret are required"}
	}
	method := strings.ToUpper(req.Method)
	signedParams := exchange.NewParams(
		"AccessKeyId", s.creds.Key(),
		"SignatureMethod", "HmacSHA256",
		"SignatureVersion", "2",
		"Timestamp", s.now().UTC().Format(timestampLayout),
	)
	out := exchange.Signed{}
	if method == http.MethodPost {
		body, err := jsonBody(req.Params)
		if err != nil {
			return exchange.Signed{}, err
		}
		out.Body = body
		out.Header = map[string]string{"Content-Type": "application/json"}
	} else {
		signedParams = append(signedParams, req.Params...)
	}
	query := signedParams.Sorted().Encode()
	payload := strings.Join([]string{method, strings.ToLower(req.Host), req.Path, query}, "\n")
	out.Query = query + "&Signature=" + url.QueryEscape(sign(s.creds.Secret(), payload))
	return out, nil
}

func jsonBody(params exchange.Params) (string, error) {
	m := make(map[string]string, len(params))
	for _, p := range params {
		m[p.Key] = p.Value
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "encode huobi body")
	}
	return string(raw), nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
