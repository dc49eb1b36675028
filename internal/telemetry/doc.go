// Package telemetry — structured logging и Prometheus-метрики.
package telemetry
