package alerts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

type fakeNotifier struct {
	titles []string
	err    error
}

func (f *fakeNotifier) Notify(title, message string) error {
	f.titles = append(f.titles, title)
	return f.err
}

func TestDispatcherNotifies(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, logger.New("test"))

	d.OrderCreated(domain.Order{OrderNumber: "001", Type: domain.OrderTypeDineIn})
	d.OrderReady("001")
	d.Alert(domain.KitchenAlertEvent{Severity: domain.SeverityHigh, Message: "fryer down"})

	assert.Equal(t, []string{"New order", "Order ready", "Kitchen alert (HIGH)"}, n.titles)
}

func TestSoundToggleGatesNotifications(t *testing.T) {
	n := &fakeNotifier{}
	d := NewDispatcher(n, logger.New("test"))

	assert.True(t, d.SoundEnabled())
	d.SetSoundEnabled(false)
	assert.False(t, d.SoundEnabled())

	d.OrderReady("001")
	assert.Empty(t, n.titles)

	d.SetSoundEnabled(true)
	d.OrderReady("001")
	assert.Len(t, n.titles, 1)
}

func TestNotifierFailureIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("autoplay blocked")}
	d := NewDispatcher(n, logger.New("test"))

	assert.NotPanics(t, func() {
		d.OrderCreated(domain.Order{OrderNumber: "001"})
		d.OrderReady("001")
	})
}

func TestConsoleNotifierOutput(t *testing.T) {
	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf)

	err := n.Notify("Order ready", "Order 001 is ready for pickup")
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Order ready: Order 001 is ready for pickup")
	assert.Contains(t, buf.String(), "\a")
}
