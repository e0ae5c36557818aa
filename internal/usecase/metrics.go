package usecase

import (
	"context"

	"github.com/example/body-analyzer/internal/bodymetrics"
)

// MetricsSummary aggregates analysis insights across all requests.
type MetricsSummary struct {
	TotalRequests      int64            `json:"total_requests"`
	ClassifiedRequests int64            `json:"classified_requests"`
	ClassificationRate float64          `json:"classification_rate"`
	ShapeBreakdown     map[string]int64 `json:"shape_breakdown"`
}

// GetMetricsSummary aggregates persisted analyses into a summary. A request
// counts as classified when the engine produced a real body shape rather
// than falling back to "Unknown".
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:  aggregation.TotalCount,
		ShapeBreakdown: aggregation.ShapeCounts,
	}
	for shape, count := range aggregation.ShapeCounts {
		if shape != bodymetrics.ShapeUnknown {
			summary.ClassifiedRequests += count
		}
	}
	if aggregation.TotalCount > 0 {
		summary.ClassificationRate = float64(summary.ClassifiedRequests) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
