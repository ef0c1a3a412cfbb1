// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for orchestration operations.
var meter = otel.Meter("foundry.engine")

var (
	sessionLatency metric.Float64Histogram
	buildAttempts  metric.Int64Counter
	errorsFixed    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sessionLatency, err = meter.Float64Histogram(
			"engine_session_duration_seconds",
			metric.WithDescription("Duration of one recursive build-fix session"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildAttempts, err = meter.Int64Counter(
			"engine_build_attempts_total",
			metric.WithDescription("Total build attempts across sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsFixed, err = meter.Int64Counter(
			"engine_errors_fixed_total",
			metric.WithDescription("Total errors eliminated across sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSessionMetrics(ctx context.Context, result *RecursiveBuildFixResult, elapsed time.Duration) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", result.Success))
	sessionLatency.Record(ctx, elapsed.Seconds(), attrs)
	buildAttempts.Add(ctx, int64(result.AttemptsUsed), attrs)
	errorsFixed.Add(ctx, int64(result.TotalFixed), attrs)
}
