package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/config"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

// Exchange carries every operations event; clients bind room patterns onto an
// exclusive per-session queue.
const Exchange = "ops.events"

const (
	maxConnectAttempts = 5
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 5 * time.Second
)

var errMissingCredential = errors.New("rabbitmq credential is missing")

// Manager owns the single event channel of the process: it dials, declares
// the session queue, keeps room bindings alive across reconnects and feeds
// deliveries one at a time into the handler. Transport failures never escape
// as errors; they show up on Connected/LastError.
type Manager struct {
	cfg     config.RabbitMQConfig
	log     logger.Logger
	handler interfaces.EventHandler
	rooms   *roomSet

	// bindMu serializes room binding against session attachment: a join that
	// races a reconnect either lands in the membership list before attach
	// reads it, or waits here and binds itself once connected is visible.
	bindMu sync.Mutex

	mu        sync.RWMutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	queue     string
	bindFn    func(pattern string) error
	unbindFn  func(pattern string) error
	connected bool
	lastErr   error
	closed    bool
	started   bool

	done chan struct{}
}

func NewManager(cfg config.RabbitMQConfig, handler interfaces.EventHandler, lgr logger.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		log:     lgr,
		handler: handler,
		rooms:   newRoomSet(),
		done:    make(chan struct{}),
	}
}

// Start launches the connection loop. A missing credential is terminal for
// the session: it is surfaced immediately and never retried.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.Password == "" {
		m.setDisconnected(errMissingCredential)
		return errMissingCredential
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	for {
		if m.isClosed() || ctx.Err() != nil {
			return
		}
		if !m.connect(ctx) {
			return
		}
		if !m.consume(ctx) {
			return
		}
		// Connection dropped; loop re-dials and re-joins all rooms.
	}
}

// connect dials with bounded backoff: up to 5 attempts, delay growing from 1s
// to a 5s cap. Returns false once the attempts are exhausted, leaving the
// last error observable.
func (m *Manager) connect(ctx context.Context) bool {
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if m.isClosed() || ctx.Err() != nil {
			return false
		}

		err := m.dial()
		if err == nil {
			m.log.Info("channel_connected", "Event channel established", "", map[string]interface{}{
				"host":  m.cfg.Host,
				"rooms": m.rooms.List(),
			})
			return true
		}

		m.setDisconnected(err)
		m.log.Error("channel_connect_failed", "Failed to establish event channel", "", map[string]interface{}{
			"attempt": attempt,
		}, err)

		if attempt == maxConnectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		delay += initialRetryDelay
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	m.log.Error("channel_gave_up", "Event channel reconnect attempts exhausted", "", nil, m.LastError())
	return false
}

func (m *Manager) dial() error {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		m.cfg.User, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.VHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Exclusive auto-delete queue: the session's private mailbox.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare session queue: %w", err)
	}

	bind := func(pattern string) error {
		return ch.QueueBind(q.Name, pattern, Exchange, false, nil)
	}
	unbind := func(pattern string) error {
		return ch.QueueUnbind(q.Name, pattern, Exchange, nil)
	}

	if err := m.attach(conn, ch, q.Name, bind, unbind); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// attach binds every joined room onto the session queue and publishes the
// connected state. bindMu is held across the whole pass so no join can fall
// between the membership read and the connected flag.
func (m *Manager) attach(conn *amqp.Connection, ch *amqp.Channel, queue string, bind, unbind func(pattern string) error) error {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()

	for _, pattern := range m.rooms.List() {
		if err := bind(pattern); err != nil {
			return fmt.Errorf("failed to bind room %s: %w", pattern, err)
		}
	}

	m.mu.Lock()
	m.conn = conn
	m.ch = ch
	m.queue = queue
	m.bindFn = bind
	m.unbindFn = unbind
	m.connected = true
	m.lastErr = nil
	m.mu.Unlock()

	return nil
}

// consume delivers messages into the handler one at a time. Returns true when
// the transport dropped and a reconnect should follow, false on shutdown.
func (m *Manager) consume(ctx context.Context) bool {
	m.mu.RLock()
	conn, ch, queue := m.conn, m.ch, m.queue
	m.mu.RUnlock()

	tag := "ops-" + uuid.NewString()
	deliveries, err := ch.Consume(queue, tag, true, true, false, false, nil)
	if err != nil {
		m.setDisconnected(fmt.Errorf("failed to start consuming: %w", err))
		return true
	}

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return false

		case amqpErr := <-closeCh:
			if m.isClosed() {
				return false
			}
			err := errors.New("connection closed")
			if amqpErr != nil {
				err = amqpErr
			}
			m.setDisconnected(fmt.Errorf("event channel dropped: %w", err))
			m.log.Error("channel_dropped", "Event channel dropped, reconnecting", "", nil, err)
			return true

		case d, ok := <-deliveries:
			if !ok {
				if m.isClosed() {
					return false
				}
				m.setDisconnected(errors.New("delivery stream closed"))
				return true
			}
			if err := m.handler(ctx, d.RoutingKey, d.Body); err != nil {
				// Malformed or unprocessable event: logged and dropped.
				m.log.Error("event_dropped", "Failed to handle event", "", map[string]interface{}{
					"routing_key": d.RoutingKey,
				}, err)
			}
		}
	}
}

// JoinLocation subscribes the session to a location room. Idempotent; with no
// location id yet it is a no-op and may be retried once the id is known. A
// join made while disconnected is applied on the next successful dial.
func (m *Manager) JoinLocation(locationID string) {
	if locationID == "" {
		return
	}
	m.join(LocationRoom(locationID))
}

func (m *Manager) LeaveLocation(locationID string) {
	if locationID == "" {
		return
	}
	m.leave(LocationRoom(locationID))
}

func (m *Manager) JoinKitchen(locationID string) {
	if locationID == "" {
		return
	}
	m.join(KitchenRoom(locationID))
}

func (m *Manager) LeaveKitchen(locationID string) {
	if locationID == "" {
		return
	}
	m.leave(KitchenRoom(locationID))
}

func (m *Manager) join(pattern string) {
	if !m.rooms.Add(pattern) {
		return
	}

	// Serialized with attach: if a reconnect is mid-pass this blocks until the
	// session is published, then binds (the pattern may get bound on both
	// sides of the race; rebinding is a broker no-op).
	m.bindMu.Lock()
	defer m.bindMu.Unlock()

	m.mu.RLock()
	bind, connected := m.bindFn, m.connected
	m.mu.RUnlock()

	if !connected || bind == nil {
		return
	}
	if err := bind(pattern); err != nil {
		m.log.Error("room_join_failed", "Failed to bind room", "", map[string]interface{}{
			"room": pattern,
		}, err)
	}
}

func (m *Manager) leave(pattern string) {
	if !m.rooms.Remove(pattern) {
		return
	}

	m.bindMu.Lock()
	defer m.bindMu.Unlock()

	m.mu.RLock()
	unbind, connected := m.unbindFn, m.connected
	m.mu.RUnlock()

	if !connected || unbind == nil {
		return
	}
	if err := unbind(pattern); err != nil {
		m.log.Error("room_leave_failed", "Failed to unbind room", "", map[string]interface{}{
			"room": pattern,
		}, err)
	}
}

func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) Rooms() []string {
	return m.rooms.List()
}

// Close tears the session down permanently and waits for the run loop to
// exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conn := m.conn
	started := m.started
	m.connected = false
	m.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
	if started {
		<-m.done
	}
}

func (m *Manager) setDisconnected(err error) {
	m.mu.Lock()
	m.connected = false
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) teardown() {
	m.mu.Lock()
	conn := m.conn
	m.connected = false
	m.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
}
