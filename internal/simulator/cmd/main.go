package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/simulator"
	"github.com/smartpotsystem/smartpot/pkg/mqttbus"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	deviceID := flag.String("device-id", "Strawberry", "planter identifier")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	valveRun := flag.Duration("valve-run", 3*time.Second, "how long the valve stays open per command")
	faultRate := flag.Float64("fault-rate", 0.02, "per-metric probability of an ERR reading")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg := mqttbus.Config{
		Host:     envStr("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: "simulator-" + *deviceID,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mqttbus.NewConn(&cfg, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}

	readings := mqttbus.NewPublisher(client, envStr("READINGS_TOPIC", "sensor/data"))
	confirms := mqttbus.NewPublisher(client, envStr("CONFIRM_TOPIC", "irrigation/confirmation"))
	commands := mqttbus.NewConsumer[messages.IrrigationCommand](client, envStr("COMMAND_TOPIC", "irrigation/command"), nil)

	sim := simulator.New(*deviceID, readings, confirms, commands, simulator.NewGenerator(*seed, *faultRate), *valveRun)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("simulator %s: shutting down...", *deviceID)
		cancel()
	}()

	log.Printf("simulator %s: publishing every %s", *deviceID, *interval)
	sim.Start(ctx, *interval)
}
