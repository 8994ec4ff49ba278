// Package alert forwards important operational events, such as an order that
// was cancelled but never replaced, to a human-facing channel.
package alert

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is what producers depend on. *Manager implements it and a nil
// *Manager is a valid no-op.
type Alerter interface {
	Important(event string, fields map[string]string)
}

const (
	defaultQueueSize          = 128
	defaultDropReportInterval = time.Minute
	defaultSendTimeout        = 20 * time.Second
)

type Options struct {
	QueueSize int
	// DropReportInterval controls the periodic summary of dropped alerts.
	// Zero disables it; a summary is still logged on Close.
	DropReportInterval time.Duration
	SendTimeout        time.Duration
	Now                func() time.Time
}

// Manager queues alerts and delivers them from one goroutine. Important never
// blocks: when the queue is full the alert is dropped and counted.
type Manager struct {
	service     string
	notifier    Notifier
	queue       chan event
	stop        chan struct{}
	done        chan struct{}
	interval    time.Duration
	sendTimeout time.Duration
	now         func() time.Time

	dropped        atomic.Uint64
	droppedPending atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

type event struct {
	name   string
	fields map[string]string
	at     time.Time
}

// NewManager returns nil when notifier is nil.
func NewManager(service string, notifier Notifier, opts Options) *Manager {
	if notifier == nil {
		return nil
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.DropReportInterval < 0 {
		opts.DropReportInterval = 0
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		service:     service,
		notifier:    notifier,
		queue:       make(chan event, opts.QueueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		interval:    opts.DropReportInterval,
		sendTimeout: opts.SendTimeout,
		now:         opts.Now,
	}
	go m.run()
	return m
}

func (m *Manager) Important(name string, fields map[string]string) {
	if m == nil {
		return
	}
	ev := event{name: name, fields: cloneFields(fields), at: m.now()}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
		return
	default:
	}
	total := m.dropped.Add(1)
	// Only the first drop of a window is logged on its own; the rest are
	// summarized by the periodic report.
	if m.droppedPending.Add(1) == 1 {
		logrus.WithFields(logrus.Fields{
			"event":         "alert_dropped",
			"alert":         name,
			"exchange":      fields["exchange"],
			"dropped_total": total,
			"queue_cap":     cap(m.queue),
		}).Warn("alert queue full")
	}
}

// Close stops accepting alerts, delivers what is already queued and waits for
// the sender until ctx is done.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run delivers queued alerts. Drop reports come from their own goroutine so
// they keep flowing while a notifier call is stuck.
func (m *Manager) run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.deliverLoop()
	}()
	if m.interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.reportLoop()
		}()
	}
	wg.Wait()
	m.reportDropped()
	close(m.done)
}

func (m *Manager) deliverLoop() {
	for {
		select {
		case ev := <-m.queue:
			m.deliver(ev)
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) reportLoop() {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.reportDropped()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) reportDropped() {
	n := m.droppedPending.Swap(0)
	if n == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"event":         "alert_dropped_report",
		"dropped":       n,
		"dropped_total": m.dropped.Load(),
		"interval_sec":  int64(m.interval / time.Second),
	}).Warn("alerts dropped")
}

func (m *Manager) deliver(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.format(ev)); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":    "alert_notify_failed",
			"alert":    ev.name,
			"exchange": ev.fields["exchange"],
		}).WithError(err).Error("alert not delivered")
	}
}

// format renders the headline with the exchange when one is given, then the
// remaining fields as sorted key=value lines.
func (m *Manager) format(ev event) string {
	head := "[" + m.service + "] " + ev.name
	if ex := ev.fields["exchange"]; ex != "" {
		head += " on " + ex
	}
	lines := []string{head, "at " + ev.at.UTC().Format(time.RFC3339)}
	keys := make([]string, 0, len(ev.fields))
	for k := range ev.fields {
		if k != "exchange" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+"="+ev.fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
