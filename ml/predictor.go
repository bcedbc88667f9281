// Package ml isolates the failure-prediction collaborator behind an
// interface. The baseline statistical predictor below stands in for an
// external model; it is best-effort reporting, not part of the registry's
// guaranteed contract.
package ml

import (
	"context"
	"errors"
	"math"
	"time"

	"drivemap/core"

	"go.uber.org/zap"
)

// ErrUnavailable is returned when the prediction collaborator fails
var ErrUnavailable = errors.New("failure prediction model unavailable")

// FailurePrediction pairs a device with its predicted failure probability
type FailurePrediction struct {
	DeviceID    string  `json:"id"`
	Probability float64 `json:"failure_probability"`
}

// FailurePredictor defines the interface for drive failure prediction models
type FailurePredictor interface {
	// Name returns the name of the predictor
	Name() string

	// PredictFailures returns a failure probability in [0, 1] for each
	// device, in the same order as the input.
	PredictFailures(ctx context.Context, devices []core.Device) ([]FailurePrediction, error)
}

// StatisticalPredictor scores failure risk from observable drive features:
// current status, age relative to the fleet, and capacity deviation. It is
// a deliberately simple baseline that behaves like a fitted model without
// needing training data.
type StatisticalPredictor struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewStatisticalPredictor creates the baseline failure predictor
func NewStatisticalPredictor(logger *zap.SugaredLogger) *StatisticalPredictor {
	return &StatisticalPredictor{
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the name of the predictor
func (p *StatisticalPredictor) Name() string {
	return "statistical-baseline"
}

// statusRisk maps each status to a base risk contribution
var statusRisk = map[core.Status]float64{
	core.StatusActive:      0.0,
	core.StatusInactive:    0.5,
	core.StatusMaintenance: 1.0,
	core.StatusFailed:      4.0,
}

// PredictFailures scores every device. The score is a logistic function of
// status risk, drive age in years, and capacity z-score across the input
// fleet, squashed into [0, 1].
func (p *StatisticalPredictor) PredictFailures(ctx context.Context, devices []core.Device) ([]FailurePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return []FailurePrediction{}, nil
	}

	mean, stddev := capacityStats(devices)
	now := p.now()

	predictions := make([]FailurePrediction, len(devices))
	for i, d := range devices {
		risk := statusRisk[d.Status]

		ageYears := now.Sub(d.CreatedAt).Hours() / (24 * 365)
		if ageYears > 0 {
			risk += 0.3 * ageYears
		}

		if stddev > 0 {
			z := (float64(d.CapacityGB) - mean) / stddev
			risk += 0.2 * math.Abs(z)
		}

		predictions[i] = FailurePrediction{
			DeviceID:    d.ID,
			Probability: logistic(risk - 2),
		}
	}

	p.logger.Debugw("Failure predictions computed", "devices", len(devices))
	return predictions, nil
}

func capacityStats(devices []core.Device) (mean, stddev float64) {
	for _, d := range devices {
		mean += float64(d.CapacityGB)
	}
	mean /= float64(len(devices))

	var variance float64
	for _, d := range devices {
		diff := float64(d.CapacityGB) - mean
		variance += diff * diff
	}
	variance /= float64(len(devices))
	return mean, math.Sqrt(variance)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
