// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package object

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for store operations.
var meter = otel.Meter("arxcore.object")

// Metrics for store mutations.
var (
	mutationLatency metric.Float64Histogram
	mutationTotal   metric.Int64Counter
	batchLatency    metric.Float64Histogram
	batchOps        metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mutationLatency, err = meter.Float64Histogram(
			"object_mutation_duration_seconds",
			metric.WithDescription("Duration of object store mutations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mutationTotal, err = meter.Int64Counter(
			"object_mutation_total",
			metric.WithDescription("Total number of object store mutations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchLatency, err = meter.Float64Histogram(
			"object_batch_commit_duration_seconds",
			metric.WithDescription("Duration of batch commits"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchOps, err = meter.Int64Histogram(
			"object_batch_ops",
			metric.WithDescription("Number of operations per committed batch"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMutation records metrics for a single successful mutation.
func recordMutation(kind string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	mutationLatency.Record(ctx, duration.Seconds(), attrs)
	mutationTotal.Add(ctx, 1, attrs)
}

// recordBatchCommit records metrics for a successful batch commit.
func recordBatchCommit(ops int, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	batchLatency.Record(ctx, duration.Seconds())
	batchOps.Record(ctx, int64(ops))
}
