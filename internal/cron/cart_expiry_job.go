package cron

import (
	"context"
	"fmt"

	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/metrics"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CartExpiryJobParams configure the expiry purge.
type CartExpiryJobParams struct {
	Logger  *logger.Logger
	Carts   expiredDeleter
	Metrics *metrics.CronJobMetrics
}

// NewCartExpiryJob builds the job that deletes carts past their expiry
// timestamp. Checked-out carts are kept for order history.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("carts service required")
	}
	return &cartExpiryJob{
		logg:    params.Logger,
		carts:   params.Carts,
		metrics: params.Metrics,
	}, nil
}

type cartExpiryJob struct {
	logg    *logger.Logger
	carts   expiredDeleter
	metrics *metrics.CronJobMetrics
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	rows, err := j.carts.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("delete expired carts: %w", err)
	}
	j.metrics.AddRowsAffected(j.Name(), rows)
	logCtx := j.logg.WithField(ctx, "count", rows)
	j.logg.Info(logCtx, "cart expiry purge complete")
	return nil
}
