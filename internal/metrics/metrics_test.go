package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flushed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pktforge.prom")
	require.NoError(t, Flush(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFlush(t *testing.T) {
	PacketsBuiltTotal.WithLabelValues("flush-test").Add(3)
	ChecksumMismatchesTotal.WithLabelValues("gre").Inc()
	PacketSizeBytes.WithLabelValues("build").Observe(60)

	out := flushed(t)
	assert.Contains(t, out, `pktforge_packets_built_total{template="flush-test"} 3`)
	assert.Contains(t, out, `pktforge_checksum_mismatches_total{layer="gre"} 1`)
	assert.Contains(t, out, `pktforge_packet_size_bytes_bucket{op="build",le="64"} 1`)
}

func TestFlushEmptyPath(t *testing.T) {
	assert.NoError(t, Flush(""))
}

func TestFlushBadPath(t *testing.T) {
	assert.Error(t, Flush(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
