package simulator

import (
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/smartpotsystem/smartpot/internal/model/messages"
)

const (
	// gainPerMin is the soil moisture gained per minute while the valve is open.
	gainPerMin = 2.5
	// decayPerMin is the passive moisture loss per minute with the valve closed.
	decayPerMin = 0.05
)

// Generator maintains the internal state of one emulated planter and derives a
// reading from it on every tick. Soil moisture follows a gain/decay model
// around the valve state; temperature and humidity random-walk inside a band.
type Generator struct {
	mu          sync.Mutex
	last        time.Time
	temperature float64
	humidity    float64
	moisture    float64 // percent, 0..100
	valveOpen   bool

	// faultRate is the probability per tick that a single metric reports the
	// error sentinel. A second independent draw can fail the whole reading.
	faultRate float64
	rng       *rand.Rand
}

func NewGenerator(seed int64, faultRate float64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		last:        time.Now(),
		temperature: 18 + rng.Float64()*8,
		humidity:    55 + rng.Float64()*20,
		moisture:    40 + rng.Float64()*20,
		faultRate:   faultRate,
		rng:         rng,
	}
}

// SetValve switches the irrigation model between gain and decay.
func (g *Generator) SetValve(open bool) {
	g.mu.Lock()
	g.advance(time.Now())
	g.valveOpen = open
	g.mu.Unlock()
}

// Next advances the model and renders one reading for deviceID.
func (g *Generator) Next(deviceID string) messages.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.advance(now)

	g.temperature = clamp(g.temperature+g.rng.NormFloat64()*0.3, -5, 45)
	g.humidity = clamp(g.humidity+g.rng.NormFloat64()*0.8, 5, 100)

	r := messages.SensorReading{
		DeviceID:     deviceID,
		Timestamp:    now.Format(messages.TimeLayout),
		Temperature:  g.metric(g.temperature),
		Humidity:     g.metric(g.humidity),
		SoilMoisture: g.metric(g.moisture),
	}
	// A rare total failure reports the sentinel on every metric.
	if g.faultRate > 0 && g.rng.Float64() < g.faultRate/10 {
		r.Temperature = messages.ErrSentinel
		r.Humidity = messages.ErrSentinel
		r.SoilMoisture = messages.ErrSentinel
	}
	return r
}

func (g *Generator) advance(now time.Time) {
	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	if g.valveOpen {
		g.moisture = clamp(g.moisture+gainPerMin*dtMin, 0, 100)
	} else {
		g.moisture = clamp(g.moisture-decayPerMin*dtMin, 0, 100)
	}
	g.last = now
}

func (g *Generator) metric(v float64) messages.Metric {
	if g.faultRate > 0 && g.rng.Float64() < g.faultRate {
		return messages.ErrSentinel
	}
	return messages.Metric(strconv.FormatFloat(round1(v), 'f', -1, 64))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
