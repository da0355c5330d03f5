// Package insight simulates the narrative "AI" analysis bundle served on the
// dashboard. It is a stateless text generator with no invariants and no
// persistence coupling: the registration and tracking paths never depend on
// it.
package insight

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/naveenk2131/AgriTrust/internal/model"
)

// Bundle is the fixed-shape response consumed by the dashboard.
type Bundle struct {
	DemandForecast          string `json:"demandForecast"`
	RiskAnalysis            string `json:"riskAnalysis"`
	FraudDetection          string `json:"fraudDetection"`
	LogisticsRecommendation string `json:"logisticsRecommendation"`
}

// Generator produces insight bundles from a seeded PRNG, so a fixed seed
// yields a fixed bundle. One Generator is shared across all request
// goroutines; rand.Rand is not safe for concurrent use, so the mutex guards
// every draw.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator from a seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

var seasonFactors = map[time.Month]float64{
	time.January: 0.85, time.February: 0.85, time.March: 1.15,
	time.April: 1.15, time.May: 1.15, time.June: 1.30,
	time.July: 1.30, time.August: 1.30, time.September: 1.05,
	time.October: 1.05, time.November: 1.05, time.December: 0.85,
}

var logisticsAdvice = []string{
	"Maintain standard logistics protocols and monitor transit temperature.",
	"Consider consolidating shipments to reduce per-kilogram transport cost.",
	"Prioritize early-morning dispatch to limit heat exposure in transit.",
	"Partner with local retailers to shorten the last-mile delivery window.",
}

// Report generates the bundle for one batch. now supplies the reference time
// so seasonality stays reproducible in tests.
func (g *Generator) Report(batch model.BatchRecord, now time.Time) Bundle {
	factor := seasonFactors[now.Month()]
	g.mu.Lock()
	growth := 2 + g.rng.Intn(9)    // 2-10% week-over-week
	spoilage := 5 + g.rng.Intn(36) // 5-40% spoilage probability
	anomaly := g.rng.Intn(10) == 0 // occasional anomaly flag
	advice := logisticsAdvice[g.rng.Intn(len(logisticsAdvice))]
	g.mu.Unlock()

	bundle := Bundle{
		DemandForecast: fmt.Sprintf(
			"7-day demand for %s is projected to grow %d%% with a seasonal factor of %.2f. Local markets around %s continue to favor fresh, traceable produce.",
			batch.CropName, growth, factor, batch.Location),
		RiskAnalysis: fmt.Sprintf(
			"Estimated spoilage probability of %d%% for %.0f kg of %s under standard storage and transport conditions.",
			spoilage, batch.Quantity, batch.CropName),
		FraudDetection:          "No anomalies detected in supply chain verification. All standard checks passed.",
		LogisticsRecommendation: advice,
	}
	if anomaly {
		bundle.FraudDetection = fmt.Sprintf(
			"Anomaly alert: quantity variance detected for a %s shipment near %s. Manual verification recommended.",
			batch.CropName, batch.Location)
	}
	return bundle
}

// FallbackBundle is served when report generation is unavailable for any
// reason; the dashboard endpoint never fails.
func FallbackBundle() Bundle {
	return Bundle{
		DemandForecast:          "Market demand analysis temporarily unavailable. Historical data suggests stable demand patterns for similar agricultural products.",
		RiskAnalysis:            "Risk assessment: moderate risk level (15-20% spoilage probability) based on standard industry benchmarks.",
		FraudDetection:          "Supply chain verification temporarily unavailable.",
		LogisticsRecommendation: "Maintain standard logistics protocols. Consider optimizing distribution routes for improved efficiency.",
	}
}
