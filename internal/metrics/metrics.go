// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsBuiltTotal counts packets assembled from templates
	PacketsBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_packets_built_total",
			Help: "Total number of packets assembled from templates",
		},
		[]string{"template"},
	)

	// BytesBuiltTotal counts bytes of assembled packets
	BytesBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_bytes_built_total",
			Help: "Total number of bytes in assembled packets",
		},
		[]string{"template"},
	)

	// PacketsDecodedTotal counts packets decoded by source
	PacketsDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_packets_decoded_total",
			Help: "Total number of packets decoded",
		},
		[]string{"source"},
	)

	// DecodeErrorsTotal counts packets whose outermost header failed to decode
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_decode_errors_total",
			Help: "Total number of packets that failed to decode",
		},
		[]string{"source"},
	)

	// LayersDecodedTotal counts decoded headers by kind
	LayersDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_layers_decoded_total",
			Help: "Total number of decoded headers by layer kind",
		},
		[]string{"layer"},
	)

	// ChecksumMismatchesTotal counts failed checksum verifications by layer kind
	ChecksumMismatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktforge_checksum_mismatches_total",
			Help: "Total number of checksum verification failures",
		},
		[]string{"layer"},
	)

	// TruncatedPacketsTotal counts packets with an inner header cut short
	TruncatedPacketsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktforge_truncated_packets_total",
			Help: "Total number of packets with a truncated inner header",
		},
	)

	// PacketSizeBytes tracks the size distribution of built and decoded packets
	PacketSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pktforge_packet_size_bytes",
			Help:    "Size of built and decoded packets in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8), // 64 to 8192
		},
		[]string{"op"},
	)
)

// Flush writes the default registry to path in the node-exporter textfile
// format. An empty path is a no-op.
func Flush(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
