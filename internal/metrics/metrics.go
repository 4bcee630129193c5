// Package metrics holds the prometheus collectors shared by the codec and the
// virtual filesystem bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codecBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoblob_codec_bytes_total",
			Help: "Bytes of geometry blobs produced or consumed by the codec.",
		},
		[]string{"op"},
	)

	codecErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoblob_codec_errors_total",
			Help: "Geometry blobs rejected by the codec.",
		},
		[]string{"op"},
	)

	bboxFastPath = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoblob_bbox_fastpath_total",
			Help: "Bounding box lookups served from the blob header, by result.",
		},
		[]string{"result"},
	)

	handlersInstalled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoblob_vsi_handlers_installed",
			Help: "Per-connection filesystem handlers currently installed.",
		},
	)

	vsiOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoblob_vsi_open_total",
			Help: "Files opened through the virtual filesystem bridge, by result.",
		},
		[]string{"result"},
	)
)

func ObserveSerialize(n int) {
	codecBytes.WithLabelValues("serialize").Add(float64(n))
}

func ObserveDeserialize(n int, err error) {
	if err != nil {
		codecErrors.WithLabelValues("deserialize").Inc()
		return
	}
	codecBytes.WithLabelValues("deserialize").Add(float64(n))
}

func ObserveBoundingBox(hit bool) {
	if hit {
		bboxFastPath.WithLabelValues("hit").Inc()
		return
	}
	bboxFastPath.WithLabelValues("miss").Inc()
}

func HandlerInstalled() { handlersInstalled.Inc() }

func HandlerRemoved() { handlersInstalled.Dec() }

func ObserveOpen(ok bool) {
	if ok {
		vsiOpens.WithLabelValues("ok").Inc()
		return
	}
	vsiOpens.WithLabelValues("error").Inc()
}
