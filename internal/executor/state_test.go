package executor_test

import (
	"github.com/dunelink/dunelink/internal/executor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseState", func() {
	DescribeTable("known states",
		func(raw string, expected executor.ExecutionState) {
			Expect(executor.ParseState(raw)).To(Equal(expected))
			Expect(executor.ParseState(raw).IsKnown()).To(BeTrue())
		},
		Entry("bare pending", "PENDING", executor.StatePending),
		Entry("prefixed pending", "QUERY_STATE_PENDING", executor.StatePending),
		Entry("prefixed executing", "QUERY_STATE_EXECUTING", executor.StateExecuting),
		Entry("bare completed", "COMPLETED", executor.StateCompleted),
		Entry("prefixed completed", "QUERY_STATE_COMPLETED", executor.StateCompleted),
		Entry("prefixed failed", "QUERY_STATE_FAILED", executor.StateFailed),
		Entry("bare cancelled", "CANCELLED", executor.StateCancelled),
	)

	It("keeps unknown states verbatim", func() {
		state := executor.ParseState("QUERY_STATE_EXPIRED")
		Expect(string(state)).To(Equal("QUERY_STATE_EXPIRED"))
		Expect(state.IsKnown()).To(BeFalse())
		Expect(state.IsRunning()).To(BeFalse())
	})

	It("only treats pending and executing as running", func() {
		Expect(executor.StatePending.IsRunning()).To(BeTrue())
		Expect(executor.StateExecuting.IsRunning()).To(BeTrue())
		Expect(executor.StateCompleted.IsRunning()).To(BeFalse())
		Expect(executor.StateTimedOut.IsRunning()).To(BeFalse())
	})
})
