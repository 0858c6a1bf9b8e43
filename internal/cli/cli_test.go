package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("cli", func() {
	var (
		srv      *httptest.Server
		lastPath string
		lastRaw  string
		method   string
		status   int
		body     string
	)

	BeforeEach(func() {
		status = http.StatusOK
		body = `{"result":"a,b\n1,2\n"}`
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastRaw = r.URL.RawQuery
			method = r.Method
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	AfterEach(func() {
		srv.Close()
	})

	Context("global options", func() {
		It("rejects an unknown output format", func() {
			o := DefaultGlobalOptions()
			o.Output = "table"
			Expect(o.Validate(nil)).To(MatchError(ContainSubstring("output format must be one of json, yaml")))
		})

		It("accepts the default options", func() {
			o := DefaultGlobalOptions()
			Expect(o.Validate(nil)).To(Succeed())
		})

		It("trims the trailing slash of the server url", func() {
			o := DefaultGlobalOptions()
			o.ServerUrl = "http://example.com/"
			Expect(o.Complete(nil, nil)).To(Succeed())
			Expect(o.ServerUrl).To(Equal("http://example.com"))
		})
	})

	Context("query commands", func() {
		It("rejects a non numeric query id", func() {
			o := DefaultQueryOptions((*BridgeClient).Latest)
			Expect(o.Complete(nil, []string{"abc"})).To(MatchError(ContainSubstring("invalid query id")))
			Expect(o.Complete(nil, []string{"0"})).To(HaveOccurred())
		})

		It("prints the latest result as csv", func() {
			out := &bytes.Buffer{}
			o := DefaultQueryOptions((*BridgeClient).Latest)
			o.ServerUrl = srv.URL
			o.out = out
			Expect(o.Complete(nil, []string{"1234"})).To(Succeed())

			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(method).To(Equal(http.MethodGet))
			Expect(lastPath).To(Equal("/dune/query/1234/latest"))
			Expect(out.String()).To(Equal("a,b\n1,2\n"))
		})

		It("posts an execution and prints yaml", func() {
			out := &bytes.Buffer{}
			o := DefaultQueryOptions((*BridgeClient).Execute)
			o.ServerUrl = srv.URL
			o.Output = yamlFormat
			o.out = out
			Expect(o.Complete(nil, []string{"7"})).To(Succeed())

			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(method).To(Equal(http.MethodPost))
			Expect(lastPath).To(Equal("/dune/query/7/execute"))
			Expect(out.String()).To(HavePrefix("result:"))
		})

		It("ends the no data sentinel with a newline", func() {
			body = `{"result":"No data available"}`
			out := &bytes.Buffer{}
			o := DefaultQueryOptions((*BridgeClient).Latest)
			o.ServerUrl = srv.URL
			o.out = out
			Expect(o.Complete(nil, []string{"1"})).To(Succeed())

			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(out.String()).To(Equal("No data available\n"))
		})

		It("surfaces the result text of a failed query", func() {
			status = http.StatusGatewayTimeout
			body = `{"result":"Query execution timed out","error":"timeout"}`
			o := DefaultQueryOptions((*BridgeClient).Execute)
			o.ServerUrl = srv.URL
			Expect(o.Complete(nil, []string{"9"})).To(Succeed())

			err := o.Run(context.TODO(), nil)
			Expect(err).To(MatchError("query 9: Query execution timed out"))
		})
	})

	Context("bridge client", func() {
		It("returns the status and classification of a failure", func() {
			status = http.StatusBadGateway
			body = `{"result":"HTTP error running query: boom","error":"transport_failure"}`
			_, err := NewBridgeClient(srv.URL, time.Second).Execute(context.TODO(), 1)

			var serverErr *ErrServer
			Expect(errors.As(err, &serverErr)).To(BeTrue())
			Expect(serverErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(serverErr.Reply.Error).To(Equal("transport_failure"))
			Expect(serverErr.Error()).To(ContainSubstring("502 (transport_failure)"))
		})

		It("handles a failure without a body", func() {
			status = http.StatusNotFound
			body = ``
			_, err := NewBridgeClient(srv.URL, time.Second).Latest(context.TODO(), 1)
			Expect(err).To(MatchError("server returned 404"))
		})
	})

	Context("executions", func() {
		BeforeEach(func() {
			body = `{"query_id":5,"total":7,"executions":[{"id":"e1","query_id":5,"execution_id":"01HX","outcome":"success","state":"COMPLETED","attempts":3,"row_count":2,"started_at":"2025-01-01T00:00:00Z","finished_at":"2025-01-01T00:00:15Z","duration_ms":15000}]}`
		})

		It("rejects a negative limit", func() {
			o := DefaultExecutionsOptions()
			o.Limit = -1
			Expect(o.Validate(nil)).To(MatchError("limit must not be negative"))
		})

		It("prints a table", func() {
			out := &bytes.Buffer{}
			o := DefaultExecutionsOptions()
			o.ServerUrl = srv.URL
			o.Limit = 10
			o.out = out
			Expect(o.Complete(nil, []string{"5"})).To(Succeed())

			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(lastPath).To(Equal("/dune/query/5/executions"))
			Expect(lastRaw).To(Equal("limit=10"))
			Expect(out.String()).To(ContainSubstring("OUTCOME"))
			Expect(out.String()).To(ContainSubstring("01HX"))
			Expect(out.String()).To(ContainSubstring("15s"))
			Expect(out.String()).To(ContainSubstring("showing 1 of 7 executions"))
		})

		It("prints json", func() {
			out := &bytes.Buffer{}
			o := DefaultExecutionsOptions()
			o.ServerUrl = srv.URL
			o.Output = jsonFormat
			o.out = out
			Expect(o.Complete(nil, []string{"5"})).To(Succeed())

			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(lastRaw).To(BeEmpty())
			Expect(out.String()).To(ContainSubstring(`"execution_id":"01HX"`))
		})
	})

	Context("version", func() {
		It("prints the version", func() {
			out := &bytes.Buffer{}
			o := DefaultVersionOptions()
			o.out = out
			Expect(o.Run(context.TODO(), nil)).To(Succeed())
			Expect(out.String()).To(HavePrefix("dunelink version: "))
		})
	})
})
