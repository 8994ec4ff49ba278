// Package lifecycle composes cancel and place primitives into order moves,
// closes and margin toggles.
//
// None of these operations is atomic. Once the first step succeeds the
// original order or position is gone; if the second step then fails the
// caller is left flat. Every such outcome is logged at WARN and raised as an
// important alert so it can be handled by hand.
package lifecycle

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/alert"
	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
	"exchange-gateway/internal/safety"
)

type Coordinator struct {
	ex      exchange.Exchange
	margin  exchange.MarginExchange
	filters map[string]core.SymbolFilter
	alerts  alert.Alerter
	breaker *safety.Breaker
}

type Options struct {
	// Margin enables ToggleMarginPositions. It is usually the same adapter as ex.
	Margin exchange.MarginExchange
	// Filters enable validating replacement orders before anything is cancelled.
	Filters []core.SymbolFilter
	Alerts  alert.Alerter
	// Breaker refuses new operations after repeated failures. Nil disables it.
	Breaker *safety.Breaker
}

func New(ex exchange.Exchange, opts Options) *Coordinator {
	filters := make(map[string]core.SymbolFilter, len(opts.Filters))
	for _, f := range opts.Filters {
		filters[strings.ToUpper(f.Pair)] = f
	}
	return &Coordinator{
		ex:      ex,
		margin:  opts.Margin,
		filters: filters,
		alerts:  opts.Alerts,
		breaker: opts.Breaker,
	}
}

// MoveOrder cancels order and places a limit order on the same symbol and side
// at rate for amount. When the cancel is not confirmed nothing is placed and
// the result carries a core.ErrCancelFailed rejection.
func (c *Coordinator) MoveOrder(ctx context.Context, order core.Order, rate, amount decimal.Decimal) (core.Placement, error) {
	req, rej := c.preflight(core.OrderRequest{
		Symbol: order.Symbol,
		Side:   order.Side,
		Rate:   rate,
		Amount: amount,
	})
	if rej != nil {
		return core.Rejected(rej), nil
	}
	if err := c.breaker.Allow(); err != nil {
		return core.Placement{}, err
	}
	if ok, p, err := c.cancel(ctx, order); !ok {
		return p, err
	}
	p, err := c.place(ctx, req)
	if err != nil || !p.OK() {
		c.replacementFailed("order_replace_failed", order, p, err)
	}
	if err != nil {
		return core.Placement{}, errors.Wrapf(err, "move order %s: place replacement", order.Number)
	}
	return p, nil
}

// CloseOrder cancels order and sends a market order of the same side for the
// part that had not filled yet. It reports true only when both steps succeed,
// or when the cancel leaves nothing to close.
func (c *Coordinator) CloseOrder(ctx context.Context, order core.Order) (bool, error) {
	if _, rej := c.preflight(core.OrderRequest{
		Symbol: order.Symbol,
		Side:   order.Side,
		Rate:   order.Rate,
		Amount: order.Amount,
		Market: true,
	}); rej != nil {
		return false, nil
	}
	if err := c.breaker.Allow(); err != nil {
		return false, err
	}
	if ok, _, err := c.cancel(ctx, order); !ok {
		return false, err
	}
	executed, err := c.ex.ExecutedAmount(ctx, order)
	if err != nil {
		c.replacementFailed("order_close_failed", order, core.Placement{}, err)
		return false, errors.Wrapf(err, "close order %s: executed amount", order.Number)
	}
	remaining := order.Amount.Sub(executed)
	if !remaining.IsPositive() {
		logrus.WithFields(logrus.Fields{
			"event":    "close_nothing_left",
			"exchange": c.ex.Name(),
			"order_id": order.Number,
			"executed": executed.String(),
		}).Info("order filled before cancel")
		return true, nil
	}
	req, rej := c.preflight(core.OrderRequest{
		Symbol: order.Symbol,
		Side:   order.Side,
		Rate:   order.Rate,
		Amount: remaining,
		Market: true,
	})
	if rej != nil {
		c.replacementFailed("order_close_failed", order, core.Rejected(rej), nil)
		return false, nil
	}
	p, err := c.place(ctx, req)
	if err != nil || !p.OK() {
		c.replacementFailed("order_close_failed", order, p, err)
	}
	if err != nil {
		return false, errors.Wrapf(err, "close order %s: place market order", order.Number)
	}
	return p.OK(), nil
}

// ToggleMarginPositions closes the position and opens the opposite side at
// its base price for the same amount. The opening order is checked against
// the symbol filter first; when it fails, or the close is not confirmed,
// nothing is opened.
func (c *Coordinator) ToggleMarginPositions(ctx context.Context, pos core.MarginPosition) (core.Placement, error) {
	if c.margin == nil {
		return core.Rejected(core.NewRejection(core.ErrUnsupported, "", c.ex.Name()+" has no margin trading")), nil
	}
	opposite, rej := c.preflight(core.OrderRequest{
		Symbol: pos.Symbol,
		Side:   pos.Side.Opposite(),
		Rate:   pos.BasePrice,
		Amount: pos.Amount,
	})
	if rej != nil {
		return core.Rejected(rej), nil
	}
	if err := c.breaker.Allow(); err != nil {
		return core.Placement{}, err
	}
	closed, err := c.margin.CloseMarginPosition(ctx, pos.Symbol)
	if trip := c.breaker.RecordPlace(err); trip != nil {
		err = trip
	}
	if err != nil {
		return core.Placement{}, errors.Wrapf(err, "toggle margin %s: close", pos.Symbol)
	}
	if !closed {
		logrus.WithFields(logrus.Fields{
			"event":    "margin_close_not_confirmed",
			"exchange": c.margin.Name(),
			"symbol":   pos.Symbol,
		}).Info("margin position not toggled")
		return core.Rejected(core.NewRejection(core.ErrCancelFailed, "", "close of "+pos.Symbol+" position not confirmed")), nil
	}
	p, err := c.margin.OpenMarginPosition(ctx, core.MarginRequest{
		Symbol: pos.Symbol,
		Side:   opposite.Side,
		Rate:   opposite.Rate,
		Amount: opposite.Amount,
	})
	if trip := c.breaker.RecordPlace(placeFailure(p, err)); trip != nil && err != nil {
		err = trip
	}
	if err != nil || !p.OK() {
		fields := map[string]string{
			"exchange": c.margin.Name(),
			"symbol":   pos.Symbol,
			"side":     string(pos.Side.Opposite()),
			"amount":   pos.Amount.String(),
			"rate":     pos.BasePrice.String(),
			"reason":   failureReason(p, err),
		}
		logrus.WithFields(toLogFields("margin_toggle_open_failed", fields)).Warn("position closed but opposite side not opened")
		c.alertImportant("margin_toggle_open_failed", fields)
	}
	if err != nil {
		return core.Placement{}, errors.Wrapf(err, "toggle margin %s: open opposite", pos.Symbol)
	}
	return p, nil
}

// preflight validates req against the symbol filter, if one is known, and
// returns the request rounded to tick and step.
func (c *Coordinator) preflight(req core.OrderRequest) (core.OrderRequest, *core.Rejection) {
	f, ok := c.filters[strings.ToUpper(req.Symbol)]
	if !ok {
		return req, nil
	}
	checked, err := core.CheckOrder(req, f)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event":    "preflight_rejected",
			"exchange": c.ex.Name(),
			"symbol":   req.Symbol,
			"rate":     req.Rate.String(),
			"amount":   req.Amount.String(),
			"reason":   err.Error(),
		}).Info("request fails symbol filter")
		return req, core.NewRejection(err, "", "replacement fails "+f.Pair+" filter")
	}
	return checked, nil
}

// cancel reports ok only on a confirmed cancel. Otherwise it returns the
// result the calling operation should hand back.
func (c *Coordinator) cancel(ctx context.Context, order core.Order) (bool, core.Placement, error) {
	done, err := c.ex.CancelOrder(ctx, order)
	if trip := c.breaker.RecordCancel(err); trip != nil {
		err = trip
	}
	if err != nil {
		return false, core.Placement{}, errors.Wrapf(err, "cancel order %s", order.Number)
	}
	if !done {
		logrus.WithFields(logrus.Fields{
			"event":    "cancel_not_confirmed",
			"exchange": c.ex.Name(),
			"order_id": order.Number,
			"symbol":   order.Symbol,
		}).Info("order left in place")
		return false, core.Rejected(core.NewRejection(core.ErrCancelFailed, "", "cancel of order "+order.Number+" not confirmed")), nil
	}
	return true, core.Placement{}, nil
}

// place sends req and feeds the outcome to the breaker. A rejection counts as
// a failure but is still returned as a placement.
func (c *Coordinator) place(ctx context.Context, req core.OrderRequest) (core.Placement, error) {
	p, err := c.ex.NewOrder(ctx, req)
	if trip := c.breaker.RecordPlace(placeFailure(p, err)); trip != nil && err != nil {
		err = trip
	}
	return p, err
}

func (c *Coordinator) replacementFailed(event string, order core.Order, p core.Placement, err error) {
	fields := map[string]string{
		"exchange": c.ex.Name(),
		"order_id": order.Number,
		"symbol":   order.Symbol,
		"side":     string(order.Side),
		"amount":   order.Amount.String(),
		"reason":   failureReason(p, err),
	}
	logrus.WithFields(toLogFields(event, fields)).Warn("order cancelled but replacement not placed")
	c.alertImportant(event, fields)
}

func (c *Coordinator) alertImportant(event string, fields map[string]string) {
	if c.alerts == nil {
		return
	}
	c.alerts.Important(event, fields)
}

func placeFailure(p core.Placement, err error) error {
	switch {
	case err != nil:
		return err
	case p.Rejection != nil:
		return p.Rejection
	case !p.OK():
		return errors.New("no order id returned")
	}
	return nil
}

func failureReason(p core.Placement, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case p.Rejection != nil:
		return p.Rejection.Error()
	}
	return "no order id returned"
}

func toLogFields(event string, fields map[string]string) logrus.Fields {
	out := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["event"] = event
	return out
}
