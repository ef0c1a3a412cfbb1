// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repair

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for repair operations.
var meter = otel.Meter("foundry.repair")

var (
	oracleCalls    metric.Int64Counter
	fallbacksUsed  metric.Int64Counter
	repairLatency  metric.Float64Histogram
	memoHits       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		oracleCalls, err = meter.Int64Counter(
			"repair_oracle_calls_total",
			metric.WithDescription("Total repair oracle invocations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fallbacksUsed, err = meter.Int64Counter(
			"repair_fallbacks_total",
			metric.WithDescription("Total components replaced with fallback stubs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoHits, err = meter.Int64Counter(
			"repair_fingerprint_memo_hits_total",
			metric.WithDescription("Repair requests skipped because the error fingerprint was already attempted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		repairLatency, err = meter.Float64Histogram(
			"repair_fix_duration_seconds",
			metric.WithDescription("Duration of one component fix, oracle call included"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func metricAttr(attrs ...attribute.KeyValue) metric.RecordOption {
	return metric.WithAttributes(attrs...)
}
