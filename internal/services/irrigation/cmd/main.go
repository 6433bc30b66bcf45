package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/services/irrigation"
	"github.com/smartpotsystem/smartpot/internal/storage"
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
	cfg := struct {
		Mqtt mqttbus.Config

		RedisAddr     string
		RedisPassword string

		RequestTopic string
		CommandTopic string
		ConfirmTopic string
		AlertTopic   string

		ConfirmTimeout time.Duration
		HTTPPort       int
	}{
		Mqtt: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "irrigation-service"),
		},

		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		RequestTopic: envStr("REQUEST_TOPIC", "irrigation/request"),
		CommandTopic: envStr("COMMAND_TOPIC", "irrigation/command"),
		ConfirmTopic: envStr("CONFIRM_TOPIC", "irrigation/confirmation"),
		AlertTopic:   envStr("ALERT_TOPIC", "event/alert"),

		ConfirmTimeout: time.Duration(envInt("CONFIRM_TIMEOUT_SEC", 10)) * time.Second,
		HTTPPort:       envInt("HTTP_PORT", 8081),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	states := storage.NewRedisStateStore(rdb)

	// === MQTT ===
	mqttClient, err := mqttbus.NewConn(&cfg.Mqtt, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}

	requests := mqttbus.NewConsumer[messages.IrrigationRequest](mqttClient, cfg.RequestTopic, nil)
	confirms := mqttbus.NewConsumer[messages.IrrigationConfirmation](mqttClient, cfg.ConfirmTopic, nil)
	commands := mqttbus.NewPublisher(mqttClient, cfg.CommandTopic)
	alerts := mqttbus.NewPublisher(mqttClient, cfg.AlertTopic)

	protocol, err := irrigation.NewProtocol(requests, confirms, commands, alerts, states, cfg.ConfirmTimeout)
	if err != nil {
		log.Fatalf("protocol init error: %v", err)
	}

	// === HTTP ===
	mux := irrigation.NewHTTPMux(protocol)
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("irrigation-svc: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go protocol.Start(ctx)
	log.Printf("irrigation-svc: consuming %s, confirm timeout %s", cfg.RequestTopic, cfg.ConfirmTimeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("irrigation-svc: shutting down...")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
