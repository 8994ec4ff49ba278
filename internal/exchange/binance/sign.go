package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

const apiKeyHeader = "X-MBX-APIKEY"

// Signer implements the query-string HMAC-SHA256 scheme: the parameters keep
// their order, timestamp (ms) is appended, and the hex digest of the whole
// query is added as signature.
type Signer struct {
	creds      exchange.Credentials
	recvWindow time.Duration
	now        func() time.Time
}

func NewSigner(creds exchange.Credentials, recvWindow time.Duration) *Signer {
	return &Signer{creds: creds, recvWindow: recvWindow, now: time.Now}
}

func (s *Signer) Sign(req exchange.SignRequest) (exchange.Signed, error) {
	if s.creds == nil || s.creds.Key() == "" || s.creds.Secret() == "" {
		return exchange.Signed{}, &core.ConfigurationError{Exchange: Name, Reason: "api key and secret are required"}
	}
	params := req.Params
	if s.recvWindow > 0 {
		params = params.With("recvWindow", strconv.FormatInt(s.recvWindow.Milliseconds(), 10))
	}
	params = params.With("timestamp", strconv.FormatInt(s.now().UnixMilli(), 10))
	query := params.Encode()
	return exchange.Signed{
		Query:  query + "&signature=" + sign(s.creds.Secret(), query),
		Header: map[string]string{apiKeyHeader: s.creds.Key()},
	}, nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
