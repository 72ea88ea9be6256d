package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/simsensors/internal/core/events/bus"
)

const (
	ResultOK             = "ok"
	ResultNotInitialized = "not_initialized"
)

var (
	sensorUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsensors_sensor_updates_total",
			Help: "Sensor update calls by sensor type and result.",
		},
		[]string{"type", "result"},
	)

	messagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsensors_messages_published_total",
			Help: "Messages published on the bus by topic.",
		},
		[]string{"topic"},
	)

	deliveryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsensors_delivery_errors_total",
			Help: "Publishes where at least one subscriber returned an error.",
		},
		[]string{"topic"},
	)

	deliveryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simsensors_delivery_duration_seconds",
			Help:    "Time spent delivering one message to all subscribers.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	simTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsensors_sim_time_seconds",
			Help: "Current simulation time.",
		},
	)

	stepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simsensors_step_duration_seconds",
			Help:    "Wall time spent in one world step.",
			Buckets: prometheus.DefBuckets,
		},
	)

	bridgeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsensors_bridge_clients",
			Help: "Connected websocket bridge clients.",
		},
	)

	bridgeDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsensors_bridge_dropped_total",
			Help: "Messages dropped because a bridge client was too slow.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sensorUpdatesTotal,
		messagesPublishedTotal,
		deliveryErrorsTotal,
		deliveryDurationSeconds,
		simTimeSeconds,
		stepDurationSeconds,
		bridgeClients,
		bridgeDroppedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveSensorUpdate(sensorType, result string) {
	sensorUpdatesTotal.WithLabelValues(sensorType, result).Inc()
}

func SetSimTime(d time.Duration) {
	simTimeSeconds.Set(d.Seconds())
}

func ObserveStep(d time.Duration) {
	stepDurationSeconds.Observe(d.Seconds())
}

func BridgeClientConnected()    { bridgeClients.Inc() }
func BridgeClientDisconnected() { bridgeClients.Dec() }
func BridgeMessageDropped()     { bridgeDroppedTotal.Inc() }

// BusObserver exports bus deliveries as Prometheus series. Register it with
// EventBus.AddObserver.
type BusObserver struct{}

var _ bus.EventBusObserver = BusObserver{}

func (BusObserver) OnPublish(topic string, _ bus.Event) {
	messagesPublishedTotal.WithLabelValues(topic).Inc()
}

func (BusObserver) OnDelivered(topic string, _ int, err error, duration time.Duration) {
	deliveryDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		deliveryErrorsTotal.WithLabelValues(topic).Inc()
	}
}
