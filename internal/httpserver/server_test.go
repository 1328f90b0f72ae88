package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxee/internal/httpserver"
	"github.com/angeloszaimis/proxee/pkg/logger"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	DescribeTable("address validation",
		func(addr string, valid bool) {
			srv, err := httpserver.New(logger.Discard(), addr, noop)
			if valid {
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
				Expect(srv.Addr()).To(BeNil())
			} else {
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			}
		},
		Entry("hostname", "localhost:9090", true),
		Entry("IPv4", "127.0.0.1:9090", true),
		Entry("all interfaces", "0.0.0.0:9090", true),
		Entry("port only", ":9090", true),
		Entry("too many colons", "invalid:host:port", false),
		Entry("missing port", "127.0.0.1", false),
		Entry("bad host", "bad_host!:9090", false),
	)

	Context("server lifecycle", func() {
		var testServer *httpserver.Server

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
			}
		})

		It("starts and handles requests", func() {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			})
			var err error
			testServer, err = httpserver.New(logger.Discard(), "127.0.0.1:0", handler)
			Expect(err).NotTo(HaveOccurred())
			Expect(testServer.Listen()).To(Succeed())

			go func() {
				defer GinkgoRecover()
				Expect(testServer.Start()).To(Succeed())
			}()

			resp, err := http.Get("http://" + testServer.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))
		})

		It("fails to listen on a taken address", func() {
			var err error
			testServer, err = httpserver.New(logger.Discard(), "127.0.0.1:0", noop)
			Expect(err).NotTo(HaveOccurred())
			Expect(testServer.Listen()).To(Succeed())

			other, err := httpserver.New(logger.Discard(), testServer.Addr().String(), noop)
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Listen()).To(HaveOccurred())
		})

		It("shuts down gracefully", func() {
			var err error
			testServer, err = httpserver.New(logger.Discard(), "127.0.0.1:0", noop)
			Expect(err).NotTo(HaveOccurred())
			Expect(testServer.Listen()).To(Succeed())

			done := make(chan error, 1)
			go func() {
				done <- testServer.Start()
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = testServer.Shutdown(ctx)
			Expect(err).NotTo(HaveOccurred())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
