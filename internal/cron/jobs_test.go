package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/kalaa-market/kalaa-backend/pkg/logger"
)

type fakeCartSweeper struct {
	abandoned int64
	deleted   int64
	err       error

	sweepCalls  int
	deleteCalls int
}

func (f *fakeCartSweeper) SweepAbandoned(ctx context.Context) (int64, error) {
	f.sweepCalls++
	return f.abandoned, f.err
}

func (f *fakeCartSweeper) DeleteExpired(ctx context.Context) (int64, error) {
	f.deleteCalls++
	return f.deleted, f.err
}

func TestAbandonedCartJobRunsSweep(t *testing.T) {
	sweeper := &fakeCartSweeper{abandoned: 4}
	job, err := NewAbandonedCartJob(AbandonedCartJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Carts:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewAbandonedCartJob: %v", err)
	}
	if job.Name() != "abandoned-carts" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.sweepCalls != 1 {
		t.Fatalf("expected 1 sweep call, got %d", sweeper.sweepCalls)
	}
}

func TestAbandonedCartJobPropagatesError(t *testing.T) {
	sweeper := &fakeCartSweeper{err: errors.New("db down")}
	job, err := NewAbandonedCartJob(AbandonedCartJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Carts:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewAbandonedCartJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCartExpiryJobDeletes(t *testing.T) {
	sweeper := &fakeCartSweeper{deleted: 2}
	job, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Carts:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}
	if job.Name() != "cart-expiry" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.deleteCalls != 1 {
		t.Fatalf("expected 1 delete call, got %d", sweeper.deleteCalls)
	}
}

func TestJobConstructorsRequireDeps(t *testing.T) {
	if _, err := NewAbandonedCartJob(AbandonedCartJobParams{Carts: &fakeCartSweeper{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error without carts service")
	}
}
