package metrics_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/proxee/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("IncrementRequests", func() {
		It("should increment the total request counter", func() {
			m.IncrementRequests()
			m.IncrementRequests()

			Expect(testutil.ToFloat64(m.TotalRequests())).To(Equal(2.0))
		})
	})

	Describe("RecordStatus", func() {
		It("should count outcomes per status code", func() {
			m.RecordStatus(200)
			m.RecordStatus(200)
			m.RecordStatus(502)

			Expect(testutil.ToFloat64(m.StatusCodes().WithLabelValues("200"))).To(Equal(2.0))
			Expect(testutil.ToFloat64(m.StatusCodes().WithLabelValues("502"))).To(Equal(1.0))
		})
	})

	Describe("ObserveLatency", func() {
		It("should record observations in the histogram", func() {
			m.ObserveLatency(0.01)
			m.ObserveLatency(0.2)

			Expect(testutil.CollectAndCount(m.RequestLatency())).To(Equal(1))
			Expect(latencySamples(m)).To(Equal(uint64(2)))
			count, err := testutil.GatherAndCount(m.Registry(), "request_latency")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("AddBackendConnections", func() {
		It("should track open connections", func() {
			m.AddBackendConnections(1)
			m.AddBackendConnections(1)
			m.AddBackendConnections(-1)

			Expect(testutil.ToFloat64(m.BackendConnections())).To(Equal(1.0))
		})
	})

	Describe("IncrementDroppedEvents", func() {
		It("should count dropped events", func() {
			m.IncrementDroppedEvents()

			Expect(testutil.ToFloat64(m.DroppedEvents())).To(Equal(1.0))
		})
	})

	Describe("Registry", func() {
		It("should keep registries independent", func() {
			other := metrics.NewMetrics()
			m.IncrementRequests()

			Expect(testutil.ToFloat64(other.TotalRequests())).To(BeZero())
		})

		It("should gather runtime collectors", func() {
			families, err := m.Registry().Gather()
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			Expect(names).To(ContainElement("go_goroutines"))
		})
	})
})
