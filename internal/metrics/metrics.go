package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_weather_api_calls_total",
			Help: "Total weather provider API calls",
		},
		[]string{"endpoint", "status"},
	)

	WeatherAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteweather_weather_api_latency_seconds",
			Help:    "Weather provider API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	LocationsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_locations_collected_total",
			Help: "Locations processed by the weather collector",
		},
		[]string{"result"},
	)

	CollectorBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteweather_collector_batch_duration_seconds",
			Help:    "Time spent fetching one collector batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ShortForecasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteweather_short_forecasts_total",
			Help: "Jobsite checks whose forecast ended before the look-ahead window",
		},
	)

	AlertChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_alert_checks_total",
			Help: "Jobsite alert evaluations by outcome",
		},
		[]string{"outcome"},
	)

	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_alerts_triggered_total",
			Help: "Threshold crossings by hazard",
		},
		[]string{"hazard"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_emails_total",
			Help: "Notification emails by result",
		},
		[]string{"result"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_stripe_webhook_events_total",
			Help: "Stripe webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteweather_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)
)
