package evaluate

import (
	"context"
	"log/slog"

	"github.com/thrryv/engine/internal/capability"
)

// Service combines a primary evaluator with the deterministic heuristic.
// Evaluate is total: a primary failure is logged and absorbed, never
// surfaced to the caller.
type Service struct {
	primary  Evaluator
	fallback *HeuristicEvaluator
	metrics  *capability.Metrics
}

// NewService creates an evaluation service. primary may be nil, in which
// case every evaluation uses the heuristic. metrics may be nil.
func NewService(primary Evaluator, metrics *capability.Metrics) *Service {
	return &Service{
		primary:  primary,
		fallback: NewHeuristicEvaluator(),
		metrics:  metrics,
	}
}

// Evaluate scores the input and computes the reputation boost.
func (s *Service) Evaluate(ctx context.Context, in Input) Result {
	axes, err := s.evaluateAxes(ctx, in)
	if err != nil {
		slog.Warn("semantic evaluation failed, falling back to heuristic", "error", err)
		if s.metrics != nil {
			s.metrics.IncFallback("evaluate")
		}
		axes, _ = s.fallback.Evaluate(ctx, in)
	}

	avg := axes.Average()
	boost, qualifies := ComputeBoost(avg)
	axes.Summary = Summary(qualifies, boost, avg, axes.Summary, axes.MediaValue)

	return Result{
		Axes:      axes,
		AvgScore:  avg,
		Boost:     boost,
		Qualifies: qualifies,
	}
}

func (s *Service) evaluateAxes(ctx context.Context, in Input) (Axes, error) {
	if s.primary == nil {
		return s.fallback.Evaluate(ctx, in)
	}
	return s.primary.Evaluate(ctx, in)
}
