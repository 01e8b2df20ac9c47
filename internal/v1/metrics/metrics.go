package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the task dispatcher and chat bus.
//
// Naming convention: namespace_subsystem_name
// - namespace: streamhub (application-level grouping)
// - subsystem: task, session, room, router (feature-level grouping)
// - name: specific metric (connections_active, dropped_messages_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, in-flight tasks)
// - Counter: Cumulative events (messages routed, drops, errors)
// - Histogram: Latency distributions (processing time)

var (
	// TasksInFlight tracks tasks currently in PROCESSING state
	TasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Subsystem: "task",
		Name:      "inflight",
		Help:      "Number of tasks currently processing",
	})

	// TasksTotal counts terminal task outcomes by status
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "task",
		Name:      "outcomes_total",
		Help:      "Total tasks reaching a terminal status",
	}, []string{"status"})

	// TaskSLAExceeded counts submissions that returned a handle instead of a result
	TaskSLAExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "task",
		Name:      "sla_exceeded_total",
		Help:      "Total submissions answered with a 202 handle after the SLA deadline",
	})

	// TaskProcessingDuration tracks wall time spent by the processor per task
	TaskProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamhub",
		Subsystem: "task",
		Name:      "processing_seconds",
		Help:      "Wall time spent processing a task",
		Buckets:   []float64{1, 5, 10, 15, 30, 45, 60, 90},
	})

	// ActiveSessions tracks the current number of connected chat sessions
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of active chat sessions",
	})

	// SessionDroppedMessages counts drop-oldest evictions from session outbound queues
	SessionDroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "session",
		Name:      "dropped_messages_total",
		Help:      "Total messages dropped from full session outbound queues",
	})

	// SessionsSuperseded counts connections evicted by a newer connection with the same user id
	SessionsSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "session",
		Name:      "superseded_total",
		Help:      "Total sessions closed because the same user reconnected",
	})

	// ActiveRooms tracks the current number of live rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the member count per room
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamhub",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// RoomDroppedMessages counts drop-oldest evictions from room fan-out buffers
	RoomDroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "room",
		Name:      "dropped_messages_total",
		Help:      "Total messages dropped from full room fan-out buffers",
	})

	// RouterMessages counts inbound frames routed by message type
	RouterMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "router",
		Name:      "messages_total",
		Help:      "Total inbound messages routed, by type",
	}, []string{"type"})

	// RouterRejected counts inbound frames with server-only or unknown types
	RouterRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamhub",
		Subsystem: "router",
		Name:      "rejected_messages_total",
		Help:      "Total inbound messages rejected by the router",
	})
)

func IncConnection() {
	ActiveSessions.Inc()
}

func DecConnection() {
	ActiveSessions.Dec()
}
