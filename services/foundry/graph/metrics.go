// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for graph operations.
var meter = otel.Meter("foundry.graph")

var (
	buildLatency metric.Float64Histogram
	cyclesBroken metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"graph_build_duration_seconds",
			metric.WithDescription("Duration of dependency graph construction"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesBroken, err = meter.Int64Counter(
			"graph_cycles_broken_total",
			metric.WithDescription("Total number of back-edges removed by cycle breaking"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// metricsCtx returns the context used for fire-and-forget metric records.
// Graph construction has no caller context of its own.
func metricsCtx() context.Context {
	return context.Background()
}

func metricAttrs(attrs ...attribute.KeyValue) metric.RecordOption {
	return metric.WithAttributes(attrs...)
}
