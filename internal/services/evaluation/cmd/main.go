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
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartpotsystem/smartpot/internal/model/entities"
	"github.com/smartpotsystem/smartpot/internal/model/messages"
	"github.com/smartpotsystem/smartpot/internal/services/evaluation"
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

		InfluxURL    string
		InfluxToken  string
		InfluxOrg    string
		InfluxBucket string

		PolicyFile string

		ReadingsTopic string
		AlertTopic    string
		RequestTopic  string

		HTTPPort int
	}{
		Mqtt: mqttbus.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "evaluation-service"),
		},

		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		InfluxURL:    envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "smartpot"),
		InfluxBucket: envStr("INFLUX_BUCKET", "raw_samples"),

		PolicyFile: envStr("POLICY_FILE", ""),

		ReadingsTopic: envStr("READINGS_TOPIC", "sensor/data"),
		AlertTopic:    envStr("ALERT_TOPIC", "event/alert"),
		RequestTopic:  envStr("REQUEST_TOPIC", "irrigation/request"),

		HTTPPort: envInt("HTTP_PORT", 8080),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Policies ===
	policies := entities.DefaultPolicyTable()
	if cfg.PolicyFile != "" {
		loaded, err := entities.LoadPolicyTable(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("policy file %s: %v", cfg.PolicyFile, err)
		}
		policies = loaded
	}

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	states := storage.NewRedisStateStore(rdb)

	// === InfluxDB ===
	influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	defer influx.Close()
	samples := storage.NewInfluxSampleLog(influx, cfg.InfluxOrg, cfg.InfluxBucket)

	// === MQTT ===
	mqttClient, err := mqttbus.NewConn(&cfg.Mqtt, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}

	consumer := mqttbus.NewConsumer[messages.SensorReading](mqttClient, cfg.ReadingsTopic, nil)
	alerts := mqttbus.NewPublisher(mqttClient, cfg.AlertTopic)
	requests := mqttbus.NewPublisher(mqttClient, cfg.RequestTopic)

	engine, err := evaluation.NewEngine(consumer, alerts, requests, states, samples, policies, time.Local)
	if err != nil {
		log.Fatalf("engine init error: %v", err)
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
		log.Printf("evaluation-svc: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go engine.Start(ctx)
	log.Printf("evaluation-svc: consuming %s for %d device policies", cfg.ReadingsTopic, len(policies))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("evaluation-svc: shutting down...")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
