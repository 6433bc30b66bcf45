package irrigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/storage"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

// State of one command/confirm exchange.
type State int

const (
	StateIdle State = iota
	StateCommandSent
	StateConfirmed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateCommandSent:
		return "COMMAND_SENT"
	case StateConfirmed:
		return "CONFIRMED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "IDLE"
	}
}

var (
	// ErrAttemptInFlight rejects a second concurrent attempt for the same
	// device. Confirmations carry only the device id, so two in-flight
	// exchanges could not be told apart; refusing the second is the safe
	// resolution of that gap.
	ErrAttemptInFlight = errors.New("irrigation attempt already in flight")

	// ErrConfirmationTimeout is returned when the deadline expires without a
	// done status. Single attempt, no retry; the caller decides whether to
	// re-issue.
	ErrConfirmationTimeout = errors.New("no confirmation before deadline")
)

// DefaultConfirmTimeout bounds the wait for a device confirmation.
const DefaultConfirmTimeout = 10 * time.Second

// Protocol drives the bounded synchronous exchange with the actuator over the
// asynchronous command and confirmation channels. Each attempt runs on its
// own goroutine; the wait is one blocking select with a deadline, cancellable
// on shutdown.
type Protocol struct {
	requests mqttbus.IConsumer[messages.IrrigationRequest]
	confirms mqttbus.IConsumer[messages.IrrigationConfirmation]
	commands mqttbus.IPublisher
	alerts   mqttbus.IPublisher
	states   storage.DeviceStateStore
	timeout  time.Duration

	nowFn func() time.Time

	mu      sync.Mutex
	waiters map[string]chan messages.IrrigationConfirmation

	runCtx context.Context // base context for queue-triggered attempts
}

func NewProtocol(
	requests mqttbus.IConsumer[messages.IrrigationRequest],
	confirms mqttbus.IConsumer[messages.IrrigationConfirmation],
	commands mqttbus.IPublisher,
	alerts mqttbus.IPublisher,
	states storage.DeviceStateStore,
	timeout time.Duration,
) (*Protocol, error) {
	if commands == nil || alerts == nil {
		return nil, errors.New("command and alert publishers are required")
	}
	if states == nil {
		return nil, errors.New("state store is required")
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	p := &Protocol{
		requests: requests,
		confirms: confirms,
		commands: commands,
		alerts:   alerts,
		states:   states,
		timeout:  timeout,
		nowFn:    time.Now,
		waiters:  make(map[string]chan messages.IrrigationConfirmation),
		runCtx:   context.Background(),
	}
	if requests != nil {
		requests.SetHandler(p.handleRequest)
	}
	if confirms != nil {
		confirms.SetHandler(p.HandleConfirmation)
	}
	return p, nil
}

// Start consumes queued requests and confirmations until ctx is cancelled.
// In-flight waits abort with ctx.
func (p *Protocol) Start(ctx context.Context) {
	p.runCtx = ctx
	go p.requests.Consume(ctx)
	go p.confirms.Consume(ctx)
	<-ctx.Done()
}

func (p *Protocol) handleRequest(_ string, msg mqtt.Message) error {
	var req messages.IrrigationRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		log.Printf("irrigation: bad request payload: %v", err)
		return nil
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		log.Printf("irrigation: request without device_id, skipped")
		return nil
	}
	// One goroutine per attempt so a waiting exchange never blocks other
	// devices.
	go func() {
		if _, err := p.Run(p.runCtx, req.DeviceID); err != nil {
			log.Printf("irrigation: attempt for %s: %v", req.DeviceID, err)
		}
	}()
	return nil
}

// HandleConfirmation routes a done status to the waiter for its device.
// Correlation is by device id only.
func (p *Protocol) HandleConfirmation(_ string, msg mqtt.Message) error {
	var c messages.IrrigationConfirmation
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		log.Printf("irrigation: bad confirmation payload: %v", err)
		return nil
	}
	if !strings.EqualFold(c.Status, messages.StatusDone) {
		return nil
	}

	p.mu.Lock()
	ch := p.waiters[c.DeviceID]
	p.mu.Unlock()
	if ch == nil {
		log.Printf("irrigation: unmatched confirmation for %s", c.DeviceID)
		return nil
	}
	select {
	case ch <- c:
	default:
	}
	return nil
}

// Run drives one exchange for deviceID: publish the start command, then block
// until confirmation, deadline, or cancellation. A failure to even publish is
// fatal for the invocation and reported without waiting.
func (p *Protocol) Run(ctx context.Context, deviceID string) (State, error) {
	ch, err := p.register(deviceID)
	if err != nil {
		return StateIdle, err
	}
	defer p.unregister(deviceID)

	cmd := messages.IrrigationCommand{
		DeviceID:  deviceID,
		Action:    messages.ActionStart,
		RequestID: uuid.New().String(),
	}
	b, _ := json.Marshal(cmd)
	if err := p.commands.PublishQos(1, false, b); err != nil {
		attemptsTotal.WithLabelValues("publish_error").Inc()
		return StateIdle, fmt.Errorf("publish command for %s: %w", deviceID, err)
	}
	log.Printf("irrigation: command sent to %s (request %s)", deviceID, cmd.RequestID)
	p.emitAlert(deviceID, entities.AlertIrrigationTriggered, map[string]string{
		"message": fmt.Sprintf("Irrigation started for %s.", deviceID),
	})

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-ch:
		if err := p.states.SetLastIrrigation(ctx, deviceID, p.nowFn()); err != nil {
			log.Printf("irrigation: record last_irrigation for %s: %v", deviceID, err)
		}
		p.emitAlert(deviceID, entities.AlertIrrigationCompleted, nil)
		attemptsTotal.WithLabelValues("confirmed").Inc()
		log.Printf("irrigation: %s confirmed", deviceID)
		return StateConfirmed, nil

	case <-timer.C:
		p.emitAlert(deviceID, entities.AlertIrrigationError, nil)
		attemptsTotal.WithLabelValues("timeout").Inc()
		return StateTimedOut, fmt.Errorf("%s: %w", deviceID, ErrConfirmationTimeout)

	case <-ctx.Done():
		attemptsTotal.WithLabelValues("cancelled").Inc()
		return StateCommandSent, ctx.Err()
	}
}

func (p *Protocol) register(deviceID string) (chan messages.IrrigationConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.waiters[deviceID]; busy {
		return nil, fmt.Errorf("%s: %w", deviceID, ErrAttemptInFlight)
	}
	ch := make(chan messages.IrrigationConfirmation, 1)
	p.waiters[deviceID] = ch
	return ch, nil
}

func (p *Protocol) unregister(deviceID string) {
	p.mu.Lock()
	delete(p.waiters, deviceID)
	p.mu.Unlock()
}

func (p *Protocol) emitAlert(deviceID string, kind entities.AlertKind, details map[string]string) {
	evt := messages.AlertEvent{
		DeviceID:  deviceID,
		Kind:      kind,
		Details:   details,
		Timestamp: p.nowFn(),
	}
	b, _ := json.Marshal(evt)
	if err := p.alerts.PublishQos(1, false, b); err != nil {
		log.Printf("irrigation: publish %s alert for %s: %v", kind, deviceID, err)
	}
}
