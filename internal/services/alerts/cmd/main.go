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
	"github.com/smartpotsystem/smartpot/internal/services/alerts"
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

		AlertTopic string

		TelegramToken  string
		TelegramChatID string

		HTTPPort int
	}{
		Mqtt: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "alert-service"),
		},

		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AlertTopic: envStr("ALERT_TOPIC", "event/alert"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		HTTPPort: envInt("HTTP_PORT", 8082),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	counters := storage.NewRedisCounterStore(rdb)

	// === Notifier ===
	var notifier alerts.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = alerts.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, 10*time.Second)
		log.Printf("alert-svc: telegram notifier enabled")
	} else {
		log.Printf("alert-svc: no telegram credentials, logging notifications only")
	}

	// === MQTT ===
	mqttClient, err := mqttbus.NewConn(&cfg.Mqtt, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}
	consumer := mqttbus.NewConsumer[messages.AlertEvent](mqttClient, cfg.AlertTopic, nil)

	aggregator, err := alerts.NewAggregator(consumer, counters, notifier)
	if err != nil {
		log.Fatalf("aggregator init error: %v", err)
	}

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("alert-svc: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go aggregator.Start(ctx)
	log.Printf("alert-svc: consuming %s", cfg.AlertTopic)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("alert-svc: shutting down...")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
