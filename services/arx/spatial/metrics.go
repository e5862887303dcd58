// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package spatial

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for spatial queries.
var meter = otel.Meter("arxcore.spatial")

var (
	queryLatency metric.Float64Histogram
	queryResults metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		queryLatency, metricsErr = meter.Float64Histogram(
			"spatial_query_duration_seconds",
			metric.WithDescription("Spatial query latency in seconds"),
		)
		if metricsErr != nil {
			return
		}
		queryResults, metricsErr = meter.Int64Histogram(
			"spatial_query_results",
			metric.WithDescription("Result count per spatial query"),
		)
	})
	return metricsErr
}

// recordQuery records one completed spatial query.
func recordQuery(kind string, duration time.Duration, results int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	queryLatency.Record(context.Background(), duration.Seconds(), attrs)
	queryResults.Record(context.Background(), int64(results), attrs)
}
