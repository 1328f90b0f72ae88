package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/proxee/internal/metrics"
	"github.com/angeloszaimis/proxee/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, logger.Discard())
	})

	AfterEach(func() {
		cancel()
	})

	totalRequests := func() float64 {
		return testutil.ToFloat64(collector.Metrics().TotalRequests())
	}

	Describe("event processing", func() {
		BeforeEach(func() {
			collector.Start(ctx)
		})

		It("should count completions", func() {
			collector.RecordCompletion()
			Eventually(totalRequests).Should(Equal(1.0))
		})

		It("should count outcomes by code", func() {
			collector.RecordOutcome(200)
			collector.RecordOutcome(503)
			collector.RecordOutcome(503)

			Eventually(func() float64 {
				return testutil.ToFloat64(collector.Metrics().StatusCodes().WithLabelValues("503"))
			}).Should(Equal(2.0))
			Expect(testutil.ToFloat64(collector.Metrics().StatusCodes().WithLabelValues("200"))).To(Equal(1.0))
		})

		It("should record latency", func() {
			collector.RecordLatency(0.25)

			Eventually(func() (int, error) {
				return testutil.GatherAndCount(collector.Metrics().Registry(), "request_latency")
			}).Should(Equal(1))
		})

		It("should track backend connections", func() {
			collector.ConnectionOpened()
			collector.ConnectionOpened()
			collector.ConnectionClosed()

			Eventually(func() float64 {
				return testutil.ToFloat64(collector.Metrics().BackendConnections())
			}).Should(Equal(1.0))
		})

		It("should tolerate repeated Start calls", func() {
			collector.Start(ctx)
			collector.RecordCompletion()
			Eventually(totalRequests).Should(Equal(1.0))
		})
	})

	Describe("shutdown", func() {
		It("should drain buffered events on cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.RecordCompletion()
			}

			collector.Start(ctx)
			cancel()
			Eventually(collector.Done()).Should(BeClosed())

			Expect(totalRequests()).To(Equal(5.0))
		})
	})

	Describe("backpressure", func() {
		var small *metrics.Collector

		BeforeEach(func() {
			small = metrics.NewCollector(1, logger.Discard())
		})

		stop := func() {
			small.Start(ctx)
			cancel()
			Eventually(small.Done()).Should(BeClosed())
		}

		It("should drop events instead of blocking when full", func() {
			for i := 0; i < 10; i++ {
				small.RecordCompletion()
			}
			stop()

			Expect(testutil.ToFloat64(small.Metrics().TotalRequests())).To(Equal(1.0))
			Expect(testutil.ToFloat64(small.Metrics().DroppedEvents())).To(Equal(9.0))
		})

		It("should keep the connection gauge balanced when the buffer is full", func() {
			small.RecordOutcome(200)
			small.ConnectionOpened()
			small.Start(ctx)
			small.ConnectionClosed()

			Expect(testutil.ToFloat64(small.Metrics().BackendConnections())).To(Equal(0.0))
			Expect(testutil.ToFloat64(small.Metrics().DroppedEvents())).To(BeZero())
		})

		It("should apply or drop a result as a unit", func() {
			small.RecordResult(metrics.Result{Code: 200, Completed: true, Latency: 0.5, Observed: true})
			small.RecordResult(metrics.Result{Code: 200, Completed: true, Latency: 0.5, Observed: true})
			stop()

			Expect(testutil.ToFloat64(small.Metrics().TotalRequests())).To(Equal(1.0))
			Expect(testutil.ToFloat64(small.Metrics().StatusCodes().WithLabelValues("200"))).To(Equal(1.0))
			Expect(latencySamples(small.Metrics())).To(Equal(uint64(1)))
			Expect(testutil.ToFloat64(small.Metrics().DroppedEvents())).To(Equal(1.0))
		})
	})

	Describe("results", func() {
		BeforeEach(func() {
			collector.Start(ctx)
		})

		It("should count a completed result in every collector", func() {
			collector.RecordResult(metrics.Result{Code: 200, Completed: true, Latency: 0.1, Observed: true})

			Eventually(totalRequests).Should(Equal(1.0))
			Expect(testutil.ToFloat64(collector.Metrics().StatusCodes().WithLabelValues("200"))).To(Equal(1.0))
			Expect(latencySamples(collector.Metrics())).To(Equal(uint64(1)))
		})

		It("should only count the code of a failed result", func() {
			collector.RecordResult(metrics.Result{Code: 502})

			Eventually(func() float64 {
				return testutil.ToFloat64(collector.Metrics().StatusCodes().WithLabelValues("502"))
			}).Should(Equal(1.0))
			Expect(totalRequests()).To(BeZero())
			Expect(latencySamples(collector.Metrics())).To(BeZero())
		})
	})

	Describe("Handler", func() {
		It("should expose metrics in the text format", func() {
			collector.Start(ctx)
			collector.RecordCompletion()
			Eventually(totalRequests).Should(Equal(1.0))

			srv := httptest.NewServer(collector.Handler())
			defer srv.Close()

			resp, err := http.Get(srv.URL)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("total_requests 1"))
			Expect(string(body)).To(ContainSubstring("backend_connections 0"))
			Expect(string(body)).To(ContainSubstring("dropped_events 0"))
		})
	})

	Describe("Nop", func() {
		It("should accept every call", func() {
			var sink metrics.Nop
			sink.RecordCompletion()
			sink.RecordOutcome(500)
			sink.RecordLatency(1)
		})
	})
})
