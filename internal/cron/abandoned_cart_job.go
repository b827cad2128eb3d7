package cron

import (
	"context"
	"fmt"

	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/metrics"
)

type abandonedSweeper interface {
	SweepAbandoned(ctx context.Context) (int64, error)
}

// AbandonedCartJobParams configure the abandonment sweep.
type AbandonedCartJobParams struct {
	Logger  *logger.Logger
	Carts   abandonedSweeper
	Metrics *metrics.CronJobMetrics
}

// NewAbandonedCartJob builds the job that flips idle active carts to
// abandoned.
func NewAbandonedCartJob(params AbandonedCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("carts service required")
	}
	return &abandonedCartJob{
		logg:    params.Logger,
		carts:   params.Carts,
		metrics: params.Metrics,
	}, nil
}

type abandonedCartJob struct {
	logg    *logger.Logger
	carts   abandonedSweeper
	metrics *metrics.CronJobMetrics
}

func (j *abandonedCartJob) Name() string { return "abandoned-carts" }

func (j *abandonedCartJob) Run(ctx context.Context) error {
	rows, err := j.carts.SweepAbandoned(ctx)
	if err != nil {
		return fmt.Errorf("sweep abandoned carts: %w", err)
	}
	j.metrics.AddRowsAffected(j.Name(), rows)
	logCtx := j.logg.WithField(ctx, "count", rows)
	j.logg.Info(logCtx, "abandoned cart sweep complete")
	return nil
}
