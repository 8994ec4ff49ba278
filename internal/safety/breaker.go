// Package safety stops multi-step order operations after repeated failures.
package safety

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/alert"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half_open"
)

const (
	actionPlace  = "place order"
	actionCancel = "cancel order"

	defaultCooldown = 30 * time.Second
)

type circuit struct {
	name        string
	maxFailures int
	failures    int
	state       circuitState
	openedAt    time.Time
	openErr     error
}

type Options struct {
	MaxPlaceFailures  int
	MaxCancelFailures int
	// Cooldown is how long a tripped circuit rejects calls before letting one
	// probe through.
	Cooldown time.Duration
	Alerts   alert.Alerter
}

// Breaker tracks consecutive place and cancel failures for one exchange. A nil
// *Breaker allows everything.
type Breaker struct {
	exchange string

	mu       sync.Mutex
	place    circuit
	cancel   circuit
	cooldown time.Duration
	now      func() time.Time

	alerts alert.Alerter
}

func NewBreaker(exchange string, opts Options) *Breaker {
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{
		exchange: exchange,
		place:    circuit{name: actionPlace, maxFailures: opts.MaxPlaceFailures, state: circuitClosed},
		cancel:   circuit{name: actionCancel, maxFailures: opts.MaxCancelFailures, state: circuitClosed},
		cooldown: cooldown,
		now:      time.Now,
		alerts:   opts.Alerts,
	}
}

// Allow reports ErrCircuitOpen while either circuit is cooling down. Once the
// cooldown has passed the circuit moves to half open and the call proceeds
// as a probe.
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	if err := b.allow(&b.cancel); err != nil {
		return err
	}
	return b.allow(&b.place)
}

func (b *Breaker) RecordPlace(err error) error {
	if b == nil {
		return nil
	}
	return b.record(&b.place, err)
}

func (b *Breaker) RecordCancel(err error) error {
	if b == nil {
		return nil
	}
	return b.record(&b.cancel, err)
}

func (b *Breaker) allow(c *circuit) error {
	b.mu.Lock()
	if c.state != circuitOpen {
		b.mu.Unlock()
		return nil
	}
	if b.now().Sub(c.openedAt) < b.cooldown {
		err := c.openErr
		b.mu.Unlock()
		return err
	}
	c.state = circuitHalfOpen
	c.openErr = nil
	b.mu.Unlock()
	b.notify(logrus.InfoLevel, "circuit_breaker_half_open", map[string]string{
		"action":       c.name,
		"cooldown_sec": strconv.FormatInt(int64(b.cooldown/time.Second), 10),
	})
	return nil
}

func (b *Breaker) record(c *circuit, err error) error {
	b.mu.Lock()
	if c.maxFailures < 1 {
		b.mu.Unlock()
		return nil
	}

	if err == nil {
		prevFailures := c.failures
		prevState := c.state
		recovered := c.state == circuitHalfOpen || (c.state == circuitClosed && c.failures > 0)
		if c.state != circuitOpen {
			c.state = circuitClosed
			c.failures = 0
			c.openErr = nil
		}
		b.mu.Unlock()
		if recovered {
			b.notify(logrus.InfoLevel, "circuit_breaker_recovered", map[string]string{
				"action":                        c.name,
				"previous_consecutive_failures": strconv.Itoa(prevFailures),
				"from_state":                    string(prevState),
			})
		}
		return nil
	}

	switch c.state {
	case circuitOpen:
		openErr := c.openErr
		b.mu.Unlock()
		return openErr
	case circuitHalfOpen:
		openErr := b.tripLocked(c, err, "half_open_probe_failed")
		b.mu.Unlock()
		b.notify(logrus.ErrorLevel, "circuit_breaker_trip", map[string]string{
			"action":     c.name,
			"phase":      "half_open",
			"threshold":  strconv.Itoa(c.maxFailures),
			"last_error": err.Error(),
		})
		return openErr
	}

	c.failures++
	failures := c.failures
	limit := c.maxFailures
	if failures < limit {
		b.mu.Unlock()
		if limit > 1 && failures == limit-1 {
			b.notify(logrus.WarnLevel, "circuit_breaker_near_trip", map[string]string{
				"action":               c.name,
				"consecutive_failures": strconv.Itoa(failures),
				"threshold":            strconv.Itoa(limit),
				"last_error":           err.Error(),
			})
		}
		return nil
	}

	openErr := b.tripLocked(c, err, "consecutive_failures")
	b.mu.Unlock()
	b.notify(logrus.ErrorLevel, "circuit_breaker_trip", map[string]string{
		"action":               c.name,
		"consecutive_failures": strconv.Itoa(failures),
		"threshold":            strconv.Itoa(limit),
		"last_error":           err.Error(),
	})
	return openErr
}

func (b *Breaker) tripLocked(c *circuit, err error, reason string) error {
	c.state = circuitOpen
	c.openedAt = b.now()
	if c.failures < 1 {
		c.failures = c.maxFailures
	}
	c.openErr = fmt.Errorf("%w: %s %s failed %d consecutive times, cooldown=%s, reason=%s, last error: %w",
		ErrCircuitOpen, b.exchange, c.name, c.failures, b.cooldown.String(), reason, err)
	return c.openErr
}

func (b *Breaker) notify(level logrus.Level, event string, fields map[string]string) {
	lf := logrus.Fields{"event": event, "exchange": b.exchange}
	for k, v := range fields {
		lf[k] = v
	}
	logrus.WithFields(lf).Log(level, "circuit breaker state change")
	if b.alerts == nil {
		return
	}
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["exchange"] = b.exchange
	b.alerts.Important(event, out)
}
