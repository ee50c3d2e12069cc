package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
	"github.com/angeloszaimis/typesense-client/internal/metrics"
	"github.com/angeloszaimis/typesense-client/pkg/apierror"
	"github.com/angeloszaimis/typesense-client/pkg/logger"
)

var _ = Describe("Dispatcher", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newDispatcher := func(cfg *config.Config, opts ...dispatcher.Option) *dispatcher.Dispatcher {
		d, err := dispatcher.New(cfg, opts...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)
		return d
	}

	Describe("New", func() {
		It("should reject an invalid config", func() {
			cfg := testConfig()
			d, err := dispatcher.New(cfg)
			Expect(err).To(HaveOccurred())
			Expect(d).To(BeNil())
		})
	})

	Describe("successful requests", func() {
		It("should return on the first 2xx without further attempts", func() {
			a := newFakeNode(respond(200, `{"ok":true}`))
			b := newFakeNode(respond(200, `{"ok":true}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			var out map[string]any
			Expect(d.Get(ctx, "/health", nil, &out)).To(Succeed())
			Expect(out).To(HaveKeyWithValue("ok", true))
			Expect(a.Hits()).To(Equal(int64(1)))
			Expect(b.Hits()).To(Equal(int64(0)))
			Expect(d.Pool().Nodes()[0].IsHealthy()).To(BeTrue())
		})

		It("should rotate across nodes between calls", func() {
			a := newFakeNode(respond(200, `{}`))
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			for i := 0; i < 4; i++ {
				Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			}
			Expect(a.Hits()).To(Equal(int64(2)))
			Expect(b.Hits()).To(Equal(int64(2)))
		})

		It("should always use the healthy nearest node", func() {
			a := newFakeNode(respond(200, `{}`))
			near := newFakeNode(respond(200, `{}`))
			cfg := testConfig(a.config())
			nearCfg := near.config()
			cfg.NearestNode = &nearCfg
			d := newDispatcher(cfg)

			for i := 0; i < 3; i++ {
				Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			}
			Expect(near.Hits()).To(Equal(int64(3)))
			Expect(a.Hits()).To(Equal(int64(0)))
		})
	})

	Describe("request shaping", func() {
		var (
			received *http.Request
			body     []byte
			d        *dispatcher.Dispatcher
		)

		BeforeEach(func() {
			received, body = nil, nil
			n := newFakeNode(func(w http.ResponseWriter, r *http.Request) {
				received = r
				body, _ = io.ReadAll(r.Body)
				respond(200, `{"id":"1"}`)(w, r)
			})
			d = newDispatcher(testConfig(n.config()))
		})

		It("should send the API key header", func() {
			Expect(d.Get(ctx, "/collections", nil, nil)).To(Succeed())
			Expect(received.Header.Get(dispatcher.APIKeyHeader)).To(Equal("test-key"))
		})

		It("should transmit booleans as text", func() {
			Expect(d.Post(ctx, "/collections/books/documents", map[string]any{"title": "x"},
				dispatcher.Params{"filter": true, "dirty": false, "limit": 10}, nil)).To(Succeed())

			Expect(received.URL.Query().Get("filter")).To(Equal("true"))
			Expect(received.URL.Query().Get("dirty")).To(Equal("false"))
			Expect(received.URL.Query().Get("limit")).To(Equal("10"))
		})

		It("should JSON encode structured bodies", func() {
			Expect(d.Post(ctx, "/collections", map[string]any{"name": "books"}, nil, nil)).To(Succeed())
			Expect(received.Method).To(Equal(http.MethodPost))
			Expect(received.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(body).To(MatchJSON(`{"name":"books"}`))
		})

		It("should pass text bodies through untouched", func() {
			_, err := d.PostRaw(ctx, "/collections/books/documents/import", "{\"id\":\"1\"}\n{\"id\":\"2\"}", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("{\"id\":\"1\"}\n{\"id\":\"2\"}"))
			Expect(received.Header.Get("Content-Type")).To(Equal("text/plain"))
		})

		It("should use the verb of each wrapper", func() {
			var out map[string]any
			Expect(d.Put(ctx, "/aliases/a", map[string]string{"collection_name": "books"}, nil, &out)).To(Succeed())
			Expect(received.Method).To(Equal(http.MethodPut))
			Expect(out).To(HaveKeyWithValue("id", "1"))

			Expect(d.Patch(ctx, "/collections/books", map[string]any{}, nil, &out)).To(Succeed())
			Expect(received.Method).To(Equal(http.MethodPatch))

			Expect(d.Delete(ctx, "/collections/books", dispatcher.Params{"force": true}, &out)).To(Succeed())
			Expect(received.Method).To(Equal(http.MethodDelete))
			Expect(received.URL.Query().Get("force")).To(Equal("true"))
			Expect(body).To(BeEmpty())
		})

		It("should return raw text when asked", func() {
			text, err := d.GetRaw(ctx, "/collections/books/documents/export", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"id":"1"}`))
		})

		It("should reject bodies that cannot be encoded before sending", func() {
			err := d.Post(ctx, "/collections", map[string]any{"bad": make(chan int)}, nil, nil)
			Expect(errors.Is(err, apierror.ErrClientError)).To(BeTrue())
			Expect(received).To(BeNil())
		})
	})

	Describe("response decoding", func() {
		It("should report an undecodable success body as an invalid response", func() {
			n := newFakeNode(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			})
			d := newDispatcher(testConfig(n.config()))

			var out map[string]any
			err := d.Get(ctx, "/debug", nil, &out)
			Expect(errors.Is(err, apierror.ErrInvalidResponse)).To(BeTrue())
			Expect(n.Hits()).To(Equal(int64(1)))
		})
	})

	Describe("non-retryable errors", func() {
		It("should stop at a 404 even with retries left", func() {
			a := newFakeNode(respond(404, `{"message":"Could not find a collection named books."}`))
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			err := d.Get(ctx, "/collections/books", nil, nil)

			var apiErr *apierror.Error
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Kind).To(Equal(apierror.KindNotFound))
			Expect(apiErr.Status).To(Equal(404))
			Expect(apiErr.Message).To(Equal("Could not find a collection named books."))
			Expect(a.Hits()).To(Equal(int64(1)))
			Expect(b.Hits()).To(Equal(int64(0)))
			Expect(d.Pool().Nodes()[0].IsHealthy()).To(BeTrue())
		})

		DescribeTable("surfaces client errors on the first attempt",
			func(status int, sentinel error) {
				a := newFakeNode(respond(status, `{"message":"nope"}`))
				b := newFakeNode(respond(200, `{}`))
				d := newDispatcher(testConfig(a.config(), b.config()))

				err := d.Post(ctx, "/collections", map[string]any{}, nil, nil)
				Expect(errors.Is(err, sentinel)).To(BeTrue())
				Expect(apierror.StatusOf(err)).To(Equal(status))
				Expect(a.Hits() + b.Hits()).To(Equal(int64(1)))
			},
			Entry("400", 400, apierror.ErrMalformed),
			Entry("401", 401, apierror.ErrUnauthorized),
			Entry("403", 403, apierror.ErrForbidden),
			Entry("409", 409, apierror.ErrConflict),
			Entry("422", 422, apierror.ErrUnprocessable),
			Entry("unmapped 418", 418, apierror.ErrClientError),
			Entry("unmapped 502", 502, apierror.ErrClientError),
		)

		It("should use the default message for non-JSON error bodies", func() {
			n := newFakeNode(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("<html>forbidden</html>"))
			})
			d := newDispatcher(testConfig(n.config()))

			err := d.Get(ctx, "/keys", nil, nil)
			var apiErr *apierror.Error
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Message).To(Equal(apierror.DefaultMessage))
		})
	})

	Describe("retries", func() {
		It("should move on to another node after a 503", func() {
			a := newFakeNode(respond(503, `{"message":"Not Ready or Lagging"}`))
			b := newFakeNode(respond(200, `{"ok":true}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			Expect(a.Hits()).To(Equal(int64(1)))
			Expect(b.Hits()).To(Equal(int64(1)))

			nodes := d.Pool().Nodes()
			Expect(nodes[0].IsHealthy()).To(BeFalse())
			Expect(nodes[1].IsHealthy()).To(BeTrue())
		})

		It("should skip the failed node on the following calls", func() {
			a := newFakeNode(respond(500, `{}`))
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			for i := 0; i < 3; i++ {
				Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			}
			Expect(a.Hits()).To(Equal(int64(1)))
			Expect(b.Hits()).To(Equal(int64(3)))
		})

		It("should retry connection failures on another node", func() {
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(newDeadNode(), b.config()))

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			Expect(b.Hits()).To(Equal(int64(1)))
			Expect(d.Pool().Nodes()[0].IsHealthy()).To(BeFalse())
		})

		It("should retry attempts that exceed the connection timeout", func() {
			slow := newFakeNode(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(2 * time.Second):
				case <-r.Context().Done():
				}
			})
			fast := newFakeNode(respond(200, `{}`))
			cfg := testConfig(slow.config(), fast.config())
			cfg.ConnectionTimeout = "100ms"
			d := newDispatcher(cfg)

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			Expect(fast.Hits()).To(Equal(int64(1)))
			Expect(d.Pool().Nodes()[0].IsHealthy()).To(BeFalse())
		})

		It("should surface the last error once the budget is spent", func() {
			a := newFakeNode(respond(500, `{"message":"boom a"}`))
			b := newFakeNode(respond(503, `{"message":"boom b"}`))
			c := newFakeNode(respond(500, `{"message":"boom c"}`))
			cfg := testConfig(a.config(), b.config(), c.config())
			cfg.Retry.Count = 2
			d := newDispatcher(cfg)

			err := d.Get(ctx, "/health", nil, nil)
			Expect(errors.Is(err, apierror.ErrServerError)).To(BeTrue())
			Expect(err.(*apierror.Error).Message).To(Equal("boom c"))
			Expect(a.Hits() + b.Hits() + c.Hits()).To(Equal(int64(3)))
			for _, n := range d.Pool().Nodes() {
				Expect(n.IsHealthy()).To(BeFalse())
			}
		})

		It("should report an unreachable cluster as transport unavailable", func() {
			cfg := testConfig(newDeadNode(), newDeadNode())
			cfg.Retry.Count = 1
			d := newDispatcher(cfg)

			err := d.Get(ctx, "/health", nil, nil)
			Expect(errors.Is(err, apierror.ErrTransportUnavailable)).To(BeTrue())
			Expect(apierror.StatusOf(err)).To(Equal(apierror.StatusNone))
		})

		It("should make a single attempt with zero retries", func() {
			a := newFakeNode(respond(500, `{}`))
			b := newFakeNode(respond(200, `{}`))
			cfg := testConfig(a.config(), b.config())
			cfg.Retry.Count = 0
			d := newDispatcher(cfg)

			Expect(d.Get(ctx, "/health", nil, nil)).NotTo(Succeed())
			Expect(a.Hits() + b.Hits()).To(Equal(int64(1)))
		})

		DescribeTable("never exceeds retries+1 attempts on a 3-node pool",
			func(retries int, statuses []int) {
				var calls atomic.Int64
				next := func(w http.ResponseWriter, r *http.Request) {
					status := statuses[int(calls.Add(1)-1)%len(statuses)]
					respond(status, `{}`)(w, r)
				}
				a := newFakeNode(next)
				b := newFakeNode(next)
				c := newFakeNode(next)
				cfg := testConfig(a.config(), b.config(), c.config())
				cfg.Retry.Count = retries
				d := newDispatcher(cfg)

				_ = d.Get(ctx, "/health", nil, nil)
				Expect(a.Hits() + b.Hits() + c.Hits()).To(BeNumerically("<=", retries+1))
			},
			Entry("always 500", 2, []int{500}),
			Entry("always 503", 4, []int{503}),
			Entry("500 then success", 3, []int{500, 200}),
			Entry("503, 500, 404", 5, []int{503, 500, 404}),
			Entry("alternating 503 and 500", 1, []int{503, 500}),
			Entry("immediate success", 3, []int{200}),
		)

		It("should stop waiting between attempts when the context ends", func() {
			a := newFakeNode(respond(500, `{}`))
			cfg := testConfig(a.config())
			cfg.Retry.Interval = "10s"
			d := newDispatcher(cfg)

			ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := d.Get(ctx, "/health", nil, nil)
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
			Expect(a.Hits()).To(Equal(int64(1)))
		})
	})

	Describe("Close", func() {
		It("should be safe to call twice and reject later calls", func() {
			n := newFakeNode(respond(200, `{}`))
			d, err := dispatcher.New(testConfig(n.config()))
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Close()).To(Succeed())
			Expect(d.Close()).To(Succeed())

			err = d.Get(ctx, "/health", nil, nil)
			Expect(err).To(MatchError(apierror.ErrClosed))
			Expect(n.Hits()).To(Equal(int64(0)))

			_, _, err = d.Probe(ctx, d.Pool().Nodes()[0], "/health")
			Expect(err).To(MatchError(apierror.ErrClosed))
		})
	})

	Describe("TLS", func() {
		It("should reject a self-signed certificate when verify is unset", func() {
			n := newFakeTLSNode(respond(200, `{}`))
			cfg := testConfig(n.config())
			cfg.Retry.Count = 0
			Expect(cfg.Verify).To(BeNil())
			d := newDispatcher(cfg)

			err := d.Get(ctx, "/health", nil, nil)
			Expect(errors.Is(err, apierror.ErrTransportUnavailable)).To(BeTrue())
			Expect(n.Hits()).To(Equal(int64(0)))
		})

		It("should accept the certificate when verify is false", func() {
			n := newFakeTLSNode(respond(200, `{}`))
			cfg := testConfig(n.config())
			verify := false
			cfg.Verify = &verify
			d := newDispatcher(cfg)

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())
			Expect(n.Hits()).To(Equal(int64(1)))
		})
	})

	Describe("Probe", func() {
		It("should hit the given node without touching its health", func() {
			a := newFakeNode(respond(200, `{}`))
			b := newFakeNode(respond(503, `{"ok":false}`))
			d := newDispatcher(testConfig(a.config(), b.config()))

			status, body, err := d.Probe(ctx, d.Pool().Nodes()[1], "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(503))
			Expect(body).To(MatchJSON(`{"ok":false}`))
			Expect(a.Hits()).To(Equal(int64(0)))
			Expect(d.Pool().Nodes()[1].IsHealthy()).To(BeTrue())
		})
	})

	Describe("observability", func() {
		It("should record one span per call with an event per attempt", func() {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			DeferCleanup(provider.Shutdown, context.Background())

			a := newFakeNode(respond(503, `{}`))
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(a.config(), b.config()),
				dispatcher.WithTracer(provider.Tracer("test")))

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())

			spans := recorder.Ended()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Name()).To(Equal("typesense GET"))
			Expect(spans[0].Events()).To(HaveLen(2))
		})

		It("should report attempts and retries to the collector", func() {
			collector := metrics.NewCollector(100, logger.Discard())
			cctx, cancel := context.WithCancel(ctx)
			DeferCleanup(cancel)
			collector.Start(cctx)

			a := newFakeNode(respond(500, `{}`))
			b := newFakeNode(respond(200, `{}`))
			d := newDispatcher(testConfig(a.config(), b.config()), dispatcher.WithCollector(collector))

			Expect(d.Get(ctx, "/health", nil, nil)).To(Succeed())

			aName := d.Pool().Nodes()[0].String()
			Eventually(func() int64 { return collector.Snapshot().TotalAttempts }).Should(Equal(int64(2)))
			Eventually(func() int64 { return collector.Snapshot().TotalRetries }).Should(Equal(int64(1)))
			Eventually(func() bool {
				nm, ok := collector.Snapshot().Nodes[aName]
				return ok && !nm.Healthy && nm.StatusCodes[500] == 1
			}).Should(BeTrue())
		})
	})
})

var _ = Describe("NormalizeParams", func() {
	It("should stringify scalars", func() {
		query, err := dispatcher.NormalizeParams(dispatcher.Params{
			"filter": true,
			"dirty":  false,
			"limit":  25,
			"ratio":  0.5,
			"q":      "harry",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(query).To(Equal(map[string]string{
			"filter": "true",
			"dirty":  "false",
			"limit":  "25",
			"ratio":  "0.5",
			"q":      "harry",
		}))
	})

	It("should return nil for no params", func() {
		query, err := dispatcher.NormalizeParams(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(query).To(BeNil())
	})

	It("should reject values without a text form", func() {
		_, err := dispatcher.NormalizeParams(dispatcher.Params{"bad": struct{}{}})
		Expect(errors.Is(err, apierror.ErrClientError)).To(BeTrue())
	})
})

var _ = Describe("error bodies", func() {
	It("should round-trip the server message", func() {
		payload, err := json.Marshal(map[string]string{"message": "A document with id 1 already exists."})
		Expect(err).NotTo(HaveOccurred())

		n := newFakeNode(respond(409, string(payload)))
		d, err := dispatcher.New(testConfig(n.config()))
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		err = d.Post(context.Background(), "/collections/books/documents", map[string]string{"id": "1"}, nil, nil)
		Expect(err).To(MatchError(ContainSubstring("A document with id 1 already exists.")))
	})
})
