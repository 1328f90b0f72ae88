package metrics_test

import (
	. "github.com/onsi/gomega"
	dto "github.com/prometheus/client_model/go"

	"github.com/angeloszaimis/proxee/internal/metrics"
)

// latencySamples returns how many observations the latency histogram holds.
func latencySamples(m *metrics.Metrics) uint64 {
	var pb dto.Metric
	Expect(m.RequestLatency().Write(&pb)).To(Succeed())
	return pb.GetHistogram().GetSampleCount()
}
