package mcp_test

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dunelink/dunelink/internal/executor"
	dunemcp "github.com/dunelink/dunelink/internal/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("tool server", func() {
	var (
		svc *fakeService
		srv *dunemcp.Server
	)

	call := func(name string, args map[string]any) mcp.CallToolRequest {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		return req
	}

	text := func(result *mcp.CallToolResult) string {
		Expect(result.Content).To(HaveLen(1))
		content, ok := result.Content[0].(mcp.TextContent)
		Expect(ok).To(BeTrue())
		return content.Text
	}

	BeforeEach(func() {
		svc = &fakeService{result: &executor.Result{CSV: "a,b\n1,2\n"}}
		srv = dunemcp.NewServer(svc)
	})

	It("returns the latest result as csv", func() {
		result, err := srv.GetLatestResult(context.TODO(), call("get_latest_result", map[string]any{"query_id": float64(1234)}))
		Expect(err).To(BeNil())
		Expect(result.IsError).To(BeFalse())
		Expect(text(result)).To(Equal("a,b\n1,2\n"))
		Expect(svc.queryID).To(Equal(int64(1234)))
		Expect(svc.executed).To(BeFalse())
	})

	It("runs a query", func() {
		result, err := srv.RunQuery(context.TODO(), call("run_query", map[string]any{"query_id": float64(7)}))
		Expect(err).To(BeNil())
		Expect(text(result)).To(Equal("a,b\n1,2\n"))
		Expect(svc.executed).To(BeTrue())
	})

	It("returns the no data sentinel", func() {
		svc.result = &executor.Result{NoData: true}
		result, err := srv.RunQuery(context.TODO(), call("run_query", map[string]any{"query_id": float64(7)}))
		Expect(err).To(BeNil())
		Expect(result.IsError).To(BeFalse())
		Expect(text(result)).To(Equal("No data available"))
	})

	It("flattens failures into the tool result", func() {
		svc.err = executor.NewErrTimeout("x", 60, time.Minute)
		result, err := srv.RunQuery(context.TODO(), call("run_query", map[string]any{"query_id": float64(7)}))
		Expect(err).To(BeNil())
		Expect(result.IsError).To(BeTrue())
		Expect(text(result)).To(Equal("Query execution timed out"))
	})

	DescribeTable("rejects bad query ids without calling the service",
		func(args map[string]any) {
			result, err := srv.GetLatestResult(context.TODO(), call("get_latest_result", args))
			Expect(err).To(BeNil())
			Expect(result.IsError).To(BeTrue())
			Expect(svc.called).To(BeFalse())
		},
		Entry("missing", map[string]any{}),
		Entry("fractional", map[string]any{"query_id": 1.5}),
		Entry("negative", map[string]any{"query_id": float64(-3)}),
		Entry("not a number", map[string]any{"query_id": "abc"}),
	)
})

type fakeService struct {
	result   *executor.Result
	err      error
	queryID  int64
	executed bool
	called   bool
}

func (f *fakeService) Latest(_ context.Context, queryID int64) (*executor.Result, error) {
	f.called = true
	f.queryID = queryID
	return f.result, f.err
}

func (f *fakeService) Execute(_ context.Context, queryID int64) (*executor.Result, error) {
	f.called = true
	f.executed = true
	f.queryID = queryID
	return f.result, f.err
}
