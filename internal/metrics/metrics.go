// Package metrics exports per-stream sensor counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kinect"

var (
	framesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_completed_total",
		Help:      "Raw frames reassembled from isochronous packets",
	}, []string{"device", "stream"})

	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_delivered_total",
		Help:      "Frames decoded and handed to a reader",
	}, []string{"device", "stream"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_dropped_total",
		Help:      "Undelivered frames overwritten because the buffer pool was exhausted",
	}, []string{"device", "stream"})

	isocErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "isoc_errors_total",
		Help:      "Isochronous transfers that completed with an error",
	}, []string{"device", "stream"})

	resyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "resyncs_total",
		Help:      "Times the packet stream lost sync and waited for a new frame",
	}, []string{"device", "stream"})

	rejectedPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "rejected_packets_total",
		Help:      "Packets dropped for a bad header",
	}, []string{"device", "stream"})

	lostPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "lost_packets_total",
		Help:      "Packets missing from the sequence",
	}, []string{"device", "stream"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "streaming",
		Help:      "1 while isochronous transfers are running",
	}, []string{"device", "stream"})

	controlErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "errors_total",
		Help:      "Failed camera and motor control requests",
	}, []string{"device", "target"})
)

// PacketCounters is a snapshot of the cumulative reassembler counters.
type PacketCounters struct {
	Resyncs  uint64
	Rejected uint64
	Lost     uint64
}

// Stream holds the counters of one stream, already labelled.
type Stream struct {
	framesCompleted prometheus.Counter
	framesDelivered prometheus.Counter
	framesDropped   prometheus.Counter
	isocErrors      prometheus.Counter
	resyncs         prometheus.Counter
	rejected        prometheus.Counter
	lost            prometheus.Counter
	streaming       prometheus.Gauge

	last PacketCounters
}

func ForStream(device, stream string) *Stream {
	return &Stream{
		framesCompleted: framesCompleted.WithLabelValues(device, stream),
		framesDelivered: framesDelivered.WithLabelValues(device, stream),
		framesDropped:   framesDropped.WithLabelValues(device, stream),
		isocErrors:      isocErrors.WithLabelValues(device, stream),
		resyncs:         resyncs.WithLabelValues(device, stream),
		rejected:        rejectedPackets.WithLabelValues(device, stream),
		lost:            lostPackets.WithLabelValues(device, stream),
		streaming:       streaming.WithLabelValues(device, stream),
	}
}

func (s *Stream) FrameCompleted() {
	s.framesCompleted.Inc()
}

func (s *Stream) FrameDelivered() {
	s.framesDelivered.Inc()
}

func (s *Stream) FrameDropped() {
	s.framesDropped.Inc()
}

func (s *Stream) IsocError() {
	s.isocErrors.Inc()
}

func (s *Stream) SetStreaming(on bool) {
	if on {
		s.streaming.Set(1)
	} else {
		s.streaming.Set(0)
	}
}

// ObservePackets adds the growth of c since the previous call. Counters
// that went backwards were reset and count from zero.
func (s *Stream) ObservePackets(c PacketCounters) {
	s.resyncs.Add(float64(delta(c.Resyncs, s.last.Resyncs)))
	s.rejected.Add(float64(delta(c.Rejected, s.last.Rejected)))
	s.lost.Add(float64(delta(c.Lost, s.last.Lost)))
	s.last = c
}

func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// ControlError counts a failed control request to target ("camera" or
// "motor").
func ControlError(device, target string) {
	controlErrors.WithLabelValues(device, target).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
