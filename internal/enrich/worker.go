package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/quality"
)

const workerBatchSize = 10

// BatchProgress is a snapshot of batch enrichment progress.
type BatchProgress struct {
	Processed int
	Total     int
	Kept      int
	Percent   int
}

// BatchProgressFunc receives progress snapshots after each batch.
// Callbacks must return quickly.
type BatchProgressFunc func(BatchProgress)

// Worker drives search results through the enrichment pipeline in
// batches and drops leads below a quality floor.
type Worker struct {
	pipeline *Pipeline
	log      *zap.Logger
}

// NewWorker wraps a pipeline for batch processing.
func NewWorker(pipeline *Pipeline) *Worker {
	return &Worker{
		pipeline: pipeline,
		log:      zap.L().Named("enrich"),
	}
}

// ProcessLeads enriches all leads and returns the results whose
// quality score reaches minQuality, preserving input order.
func (w *Worker) ProcessLeads(ctx context.Context, leads []model.Lead, tier quality.Tier, criteria *quality.MatchCriteria, checks Checks, minQuality float64, onProgress BatchProgressFunc) ([]Result, error) {
	total := len(leads)
	kept := make([]Result, 0, total)

	w.log.Info("enrichment batch started",
		zap.Int("total", total),
		zap.String("tier", string(tier)))

	for start := 0; start < total; start += workerBatchSize {
		end := min(start+workerBatchSize, total)

		results, err := w.pipeline.EnrichBatch(ctx, leads[start:end], tier, criteria, checks)
		if err != nil {
			return kept, err
		}
		for _, r := range results {
			if r.Score.QualityScore >= minQuality {
				kept = append(kept, r)
			}
		}

		if onProgress != nil {
			onProgress(BatchProgress{
				Processed: end,
				Total:     total,
				Kept:      len(kept),
				Percent:   end * 100 / total,
			})
		}
	}

	w.log.Info("enrichment batch completed",
		zap.Int("total", total),
		zap.Int("kept", len(kept)),
		zap.Int("filtered", total-len(kept)))

	return kept, nil
}
