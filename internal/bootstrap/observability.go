package bootstrap

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mktdata/admin-console/config"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/observability/notify"
	"github.com/mktdata/admin-console/internal/observability/notify/pagerduty"
	"github.com/mktdata/admin-console/internal/observability/notify/slack"
	"github.com/mktdata/admin-console/internal/observability/statsd"
	"github.com/mktdata/admin-console/internal/service/alertnotifier"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Metrics *metrics.GateMetrics
	// MetricsHandler serves /metrics; nil when Prometheus exposition is disabled.
	MetricsHandler http.Handler
	MetricsSink    *statsd.Client
	// Alerts is nil when no notification channel is enabled.
	Alerts notify.Sink
}

// Close releases the statsd socket.
func (o ObservabilityContainer) Close() error {
	return o.MetricsSink.Close()
}

// BuildObservability configures metrics and notification adapters.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) (ObservabilityContainer, error) {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	var sink statsd.Sink
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  statsd.DefaultPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
			sink = client
		}
	}

	reg := prometheus.NewRegistry()
	gateMetrics, err := metrics.NewGateMetrics(reg, sink)
	if err != nil {
		return ObservabilityContainer{}, errors.Join(err, metricsSink.Close())
	}

	var handler http.Handler
	if cfg.Metrics.Prometheus {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	return ObservabilityContainer{
		Metrics:        gateMetrics,
		MetricsHandler: handler,
		MetricsSink:    metricsSink,
		Alerts:         buildAlertSink(obsLogger, cfg.Notifications),
	}, nil
}

// buildAlertSink fans lockout alerts out to every enabled channel.
//
//nolint:ireturn // nil when nothing is enabled so callers can skip delivery.
func buildAlertSink(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) notify.Sink {
	if !cfg.Enabled {
		return nil
	}

	var sinks []alertnotifier.SinkRegistration
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to configure slack notifications", "error", err)
		} else {
			sinks = append(sinks, alertnotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to configure pagerduty notifications", "error", err)
		} else {
			sinks = append(sinks, alertnotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	if len(sinks) == 0 {
		logger.Warn("security notifications enabled but no channel configured")
		return nil
	}
	logger.Info("security notifications enabled", "channels", len(sinks), "cooldown", cfg.Cooldown)
	return alertnotifier.NewService(alertnotifier.Options{
		Logger:   logger,
		Sinks:    sinks,
		Cooldown: cfg.Cooldown,
	})
}
