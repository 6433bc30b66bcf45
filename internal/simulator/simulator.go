package simulator

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

// Simulator emulates one planter: it publishes readings on an interval and
// answers irrigation commands with a confirmation after the valve has run.
type Simulator struct {
	deviceID string
	readings mqttbus.IPublisher
	confirms mqttbus.IPublisher
	commands mqttbus.IConsumer[messages.IrrigationCommand]
	gen      *Generator

	valveRunTime time.Duration
}

func New(
	deviceID string,
	readings mqttbus.IPublisher,
	confirms mqttbus.IPublisher,
	commands mqttbus.IConsumer[messages.IrrigationCommand],
	gen *Generator,
	valveRunTime time.Duration,
) *Simulator {
	if valveRunTime <= 0 {
		valveRunTime = 3 * time.Second
	}
	s := &Simulator{
		deviceID:     deviceID,
		readings:     readings,
		confirms:     confirms,
		commands:     commands,
		gen:          gen,
		valveRunTime: valveRunTime,
	}
	if commands != nil {
		commands.SetHandler(s.handleCommand)
	}
	return s
}

// Start publishes a reading every interval until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) {
	if s.commands != nil {
		go s.commands.Consume(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishReading()
		}
	}
}

func (s *Simulator) publishReading() {
	r := s.gen.Next(s.deviceID)
	b, _ := json.Marshal(r)
	if err := s.readings.PublishQos(1, false, b); err != nil {
		log.Printf("simulator %s: publish reading: %v", s.deviceID, err)
		return
	}
	log.Printf("simulator %s: reading t=%s h=%s soil=%s", s.deviceID, r.Temperature, r.Humidity, r.SoilMoisture)
}

func (s *Simulator) handleCommand(_ string, msg mqtt.Message) error {
	var cmd messages.IrrigationCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		log.Printf("simulator %s: bad command payload: %v", s.deviceID, err)
		return nil
	}
	if cmd.DeviceID != s.deviceID || !strings.EqualFold(cmd.Action, messages.ActionStart) {
		return nil
	}

	log.Printf("simulator %s: valve open (request %s)", s.deviceID, cmd.RequestID)
	s.gen.SetValve(true)
	go func() {
		time.Sleep(s.valveRunTime)
		s.gen.SetValve(false)
		s.confirm()
	}()
	return nil
}

func (s *Simulator) confirm() {
	b, _ := json.Marshal(messages.IrrigationConfirmation{
		DeviceID: s.deviceID,
		Status:   messages.StatusDone,
	})
	if err := s.confirms.PublishQos(1, false, b); err != nil {
		log.Printf("simulator %s: publish confirmation: %v", s.deviceID, err)
		return
	}
	log.Printf("simulator %s: irrigation confirmed", s.deviceID)
}
