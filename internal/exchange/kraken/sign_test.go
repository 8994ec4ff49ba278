package kraken

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

const docSecret = "kQH5HW/8p1uGOVjbgWA7FunAmGO8lsSUXNsu3eow76sz84Q18fWxnyRzBHCd3pd5nE9qa99HAZtuZuj6F1huXg=="

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

// Vector from the Kraken REST authentication guide.
func TestSignMatchesDocumentedVector(t *testing.T) {
	s := NewSigner(exchange.StaticCredentials{APIKey: "key", APISecret: docSecret}, NewNonceWithClock(fixedClock(1616492376594)))
	signed, err := s.Sign(exchange.SignRequest{
		Method: "POST",
		Path:   "/0/private/AddOrder",
		Params: exchange.NewParams("ordertype", "limit", "pair", "XBTUSD", "price", "37500", "type", "buy", "volume", "1.25"),
	})
	require.NoError(t, err)
	require.Equal(t, "nonce=1616492376594&ordertype=limit&pair=XBTUSD&price=37500&type=buy&volume=1.25", signed.Body)
	require.Equal(t, "4/dpxb3iT4tp/ZCVEwSnEsLxx0bqyhLpdfOpc6fn7OR8+UClSV5n9E6aSS8MPtnRfp32bAb0nmbRn6H8ndwLUQ==", signed.Header[apiSignHeader])
	require.Equal(t, "key", signed.Header[apiKeyHeader])
}

func TestSignSensitiveToNonceAndPath(t *testing.T) {
	secret := []byte("secret")
	a := sign(secret, "/0/private/Balance", "1", "nonce=1")
	require.Equal(t, a, sign(secret, "/0/private/Balance", "1", "nonce=1"))
	require.NotEqual(t, a, sign(secret, "/0/private/Balance", "2", "nonce=2"))
	require.NotEqual(t, a, sign(secret, "/0/private/OpenOrders", "1", "nonce=1"))
}

func TestSignRejectsBadSecret(t *testing.T) {
	_, err := NewSigner(exchange.StaticCredentials{APIKey: "k", APISecret: "not base64!"}, nil).Sign(exchange.SignRequest{})
	var ce *core.ConfigurationError
	require.True(t, errors.As(err, &ce))

	_, err = NewSigner(exchange.StaticCredentials{APIKey: "k"}, nil).Sign(exchange.SignRequest{})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestNonceStrictlyIncreasingWithFrozenClock(t *testing.T) {
	n := NewNonceWithClock(fixedClock(1000))
	require.EqualValues(t, 1000, n.Next())
	require.EqualValues(t, 1001, n.Next())
	require.EqualValues(t, 1002, n.Next())
}

func TestNonceSurvivesClockGoingBackwards(t *testing.T) {
	now := int64(5000)
	n := NewNonceWithClock(func() time.Time { return time.UnixMilli(now) })
	require.EqualValues(t, 5000, n.Next())
	now = 4000
	require.EqualValues(t, 5001, n.Next())
	now = 9000
	require.EqualValues(t, 9000, n.Next())
}

func TestNonceConcurrentCallsAreDistinct(t *testing.T) {
	n := NewNonceWithClock(fixedClock(1))
	const workers, perWorker = 16, 200
	results := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := int64(0)
			for j := 0; j < perWorker; j++ {
				v := n.Next()
				if v <= prev {
					t.Errorf("nonce went backwards within a goroutine: %d after %d", v, prev)
				}
				prev = v
				results <- v
			}
		}()
	}
	wg.Wait()
	close(results)

	all := make([]int64, 0, workers*perWorker)
	for v := range results {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		require.NotEqual(t, all[i-1], all[i])
	}
	require.Len(t, all, workers*perWorker)
}

func TestSharedNonceAcrossSigners(t *testing.T) {
	shared := NewNonceWithClock(fixedClock(42))
	creds := exchange.StaticCredentials{APIKey: "k", APISecret: docSecret}
	a, err := NewSigner(creds, shared).Sign(exchange.SignRequest{Path: "/0/private/Balance"})
	require.NoError(t, err)
	b, err := NewSigner(creds, shared).Sign(exchange.SignRequest{Path: "/0/private/Balance"})
	require.NoError(t, err)
	require.Equal(t, "nonce=42", a.Body)
	require.Equal(t, "nonce=43", b.Body)
}
