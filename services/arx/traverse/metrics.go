// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traverse

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for traversal operations.
var meter = otel.Meter("arxcore.traverse")

var (
	walkLatency metric.Float64Histogram
	walkReached metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		walkLatency, metricsErr = meter.Float64Histogram(
			"traverse_walk_duration_seconds",
			metric.WithDescription("Traversal walk latency in seconds"),
		)
		if metricsErr != nil {
			return
		}
		walkReached, metricsErr = meter.Int64Histogram(
			"traverse_walk_reached",
			metric.WithDescription("Objects reached per traversal walk"),
		)
	})
	return metricsErr
}

// recordWalk records one completed walk.
func recordWalk(kind string, duration time.Duration, reached int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	walkLatency.Record(context.Background(), duration.Seconds(), attrs)
	walkReached.Record(context.Background(), int64(reached), attrs)
}
