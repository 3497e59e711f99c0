package alerts

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

// Notifier is the device-level side effect: show a message with an audible
// cue.
type Notifier interface {
	Notify(title, message string) error
}

// Dispatcher turns selected events into notifications, gated by the
// user-togglable sound flag. Notifier failures are swallowed: a blocked
// audio device must never surface as an error or break reconciliation.
type Dispatcher struct {
	notifier Notifier
	log      logger.Logger
	sound    atomic.Bool
}

func NewDispatcher(notifier Notifier, lgr logger.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		log:      lgr,
	}
	d.sound.Store(true)
	return d
}

func (d *Dispatcher) SetSoundEnabled(enabled bool) { d.sound.Store(enabled) }

func (d *Dispatcher) SoundEnabled() bool { return d.sound.Load() }

func (d *Dispatcher) OrderCreated(order domain.Order) {
	d.notify("New order", fmt.Sprintf("Order %s (%s)", order.OrderNumber, order.Type))
}

func (d *Dispatcher) OrderReady(orderNumber string) {
	d.notify("Order ready", fmt.Sprintf("Order %s is ready for pickup", orderNumber))
}

func (d *Dispatcher) Alert(ev domain.KitchenAlertEvent) {
	title := fmt.Sprintf("Kitchen alert (%s)", ev.Severity)
	message := ev.Message
	if ev.OrderNumber != "" {
		message = fmt.Sprintf("%s (order %s)", ev.Message, ev.OrderNumber)
	}
	d.notify(title, message)
}

func (d *Dispatcher) notify(title, message string) {
	if !d.sound.Load() {
		return
	}
	if err := d.notifier.Notify(title, message); err != nil {
		d.log.Debug("notification_failed", "Notification side effect failed", "", map[string]interface{}{
			"title": title,
		})
	}
}

// ConsoleNotifier prints notifications and rings the terminal bell as the
// audible cue.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (n *ConsoleNotifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := fmt.Fprintf(n.out, "\a*** %s: %s\n", title, message)
	return err
}
