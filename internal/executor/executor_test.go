package executor_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dunelink/dunelink/internal/client"
	"github.com/dunelink/dunelink/internal/events"
	"github.com/dunelink/dunelink/internal/executor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("executor", func() {
	var (
		ctx      context.Context
		dune     *fakeDune
		recorder *eventRecorder
		exec     *executor.Executor
	)

	BeforeEach(func() {
		ctx = context.Background()
		recorder = &eventRecorder{}
		dune = &fakeDune{
			executeResp: &client.ExecuteResponse{ExecutionID: "01HX"},
			states:      []string{"QUERY_STATE_PENDING", "QUERY_STATE_EXECUTING", "QUERY_STATE_COMPLETED"},
			results:     resultsFromJSON(`{"execution_id":"01HX","result":{"rows":[{"a":1,"b":2}]}}`),
		}
		exec = executor.New(dune,
			executor.WithPollInterval(time.Millisecond),
			executor.WithMaxAttempts(60),
			executor.WithEventWriter(recorder),
		)
	})

	Context("ExecuteAndFetch", func() {
		It("submits, polls until completed and formats the rows", func() {
			result, err := exec.ExecuteAndFetch(ctx, 1234)
			Expect(err).To(BeNil())
			Expect(result.String()).To(Equal("a,b\n1,2\n"))
			Expect(result.NoData).To(BeFalse())
			Expect(result.ExecutionID).To(Equal("01HX"))
			Expect(result.RowCount).To(Equal(1))
			Expect(result.Attempts).To(Equal(3))

			execute, status, results, latest := dune.calls()
			Expect(execute).To(Equal(1))
			Expect(status).To(Equal(3))
			Expect(results).To(Equal(1))
			Expect(latest).To(Equal(0))
		})

		It("emits one event per step", func() {
			_, err := exec.ExecuteAndFetch(ctx, 1234)
			Expect(err).To(BeNil())
			Expect(recorder.kinds()).To(Equal([]string{
				events.SubmissionStartedKind,
				events.SubmittedKind,
				events.PollAttemptKind,
				events.PollAttemptKind,
				events.PollAttemptKind,
				events.CompletedKind,
			}))
			last := recorder.last()
			Expect(last.Subject).To(Equal("1234"))
			Expect(last.Body["row_count"]).To(BeNumerically("==", 1))
		})

		It("rejects a submission without execution id and makes no further calls", func() {
			dune.executeResp = &client.ExecuteResponse{}

			result, err := exec.ExecuteAndFetch(ctx, 1)
			Expect(result).To(BeNil())
			var rejected *executor.ErrSubmissionRejected
			Expect(errors.As(err, &rejected)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("submission"))

			_, status, results, _ := dune.calls()
			Expect(status).To(Equal(0))
			Expect(results).To(Equal(0))
			Expect(recorder.last().Kind).To(Equal(events.FailedKind))
		})

		DescribeTable("rejects a submission whose execution id is unusable",
			func(body string) {
				dune.executeResp = submissionFromJSON(body)

				_, err := exec.ExecuteAndFetch(ctx, 1)
				var rejected *executor.ErrSubmissionRejected
				Expect(errors.As(err, &rejected)).To(BeTrue())
				Expect(executor.Outcome(nil, err)).To(Equal(executor.OutcomeRejected))

				_, status, results, _ := dune.calls()
				Expect(status).To(Equal(0))
				Expect(results).To(Equal(0))
			},
			Entry("boolean", `{"execution_id":true}`),
			Entry("object", `{"execution_id":{"x":1}}`),
			Entry("zero", `{"execution_id":0}`),
			Entry("empty string", `{"execution_id":""}`),
			Entry("null", `{"execution_id":null}`),
		)

		It("reports a transport failure on submission", func() {
			dune.executeErr = client.NewErrUnexpectedStatus(client.EndpointExecute, http.StatusUnauthorized, "invalid API key")

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var transport *executor.ErrTransportFailure
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Phase).To(Equal(executor.PhaseSubmission))
			Expect(err.Error()).To(ContainSubstring("invalid API key"))

			var statusErr *client.ErrUnexpectedStatus
			Expect(errors.As(err, &statusErr)).To(BeTrue())
		})

		It("times out after exactly max attempts status checks", func() {
			dune.states = []string{"EXECUTING"}

			result, err := exec.ExecuteAndFetch(ctx, 1)
			Expect(result).To(BeNil())
			var timeout *executor.ErrTimeout
			Expect(errors.As(err, &timeout)).To(BeTrue())
			Expect(timeout.Attempts).To(Equal(60))
			Expect(executor.Outcome(nil, err)).To(Equal(executor.OutcomeTimeout))

			_, status, results, _ := dune.calls()
			Expect(status).To(Equal(60))
			Expect(results).To(Equal(0))
			Expect(recorder.last().Body["state"]).To(Equal("TIMED_OUT"))
		})

		It("honours a custom attempt limit", func() {
			dune.states = []string{"PENDING"}
			exec = executor.New(dune, executor.WithPollInterval(time.Millisecond), executor.WithMaxAttempts(3))

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var timeout *executor.ErrTimeout
			Expect(errors.As(err, &timeout)).To(BeTrue())
			_, status, _, _ := dune.calls()
			Expect(status).To(Equal(3))
		})

		It("stops at the wall-clock bound", func() {
			dune.states = []string{"EXECUTING"}
			exec = executor.New(dune,
				executor.WithPollInterval(20*time.Millisecond),
				executor.WithMaxAttempts(1000),
				executor.WithMaxWait(50*time.Millisecond),
			)

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var timeout *executor.ErrTimeout
			Expect(errors.As(err, &timeout)).To(BeTrue())
			_, status, _, _ := dune.calls()
			Expect(status).To(BeNumerically("<", 1000))
		})

		It("returns the no data sentinel for a completed execution without rows", func() {
			dune.states = []string{"COMPLETED"}
			dune.results = resultsFromJSON(`{"execution_id":"01HX","result":{"rows":[]}}`)

			result, err := exec.ExecuteAndFetch(ctx, 1)
			Expect(err).To(BeNil())
			Expect(result.NoData).To(BeTrue())
			Expect(result.String()).To(Equal("No data available"))
			Expect(executor.Outcome(result, nil)).To(Equal(executor.OutcomeNoData))
		})

		It("returns the no data sentinel when the result is absent", func() {
			dune.states = []string{"COMPLETED"}
			dune.results = resultsFromJSON(`{"execution_id":"01HX"}`)

			result, err := exec.ExecuteAndFetch(ctx, 1)
			Expect(err).To(BeNil())
			Expect(result.String()).To(Equal(executor.NoDataMessage))
		})

		It("returns the no data sentinel when the first row has no columns", func() {
			dune.states = []string{"COMPLETED"}
			dune.results = resultsFromJSON(`{"execution_id":"01HX","result":{"rows":[{},{}]}}`)

			result, err := exec.ExecuteAndFetch(ctx, 1)
			Expect(err).To(BeNil())
			Expect(result.NoData).To(BeTrue())
			Expect(result.CSV).To(BeEmpty())
			Expect(result.String()).To(Equal(executor.NoDataMessage))
		})

		DescribeTable("fails immediately on a terminal state other than completed",
			func(state string, expected executor.ExecutionState) {
				dune.states = []string{"PENDING", state, "COMPLETED"}

				_, err := exec.ExecuteAndFetch(ctx, 1)
				var failed *executor.ErrExecutionFailed
				Expect(errors.As(err, &failed)).To(BeTrue())
				Expect(failed.State).To(Equal(expected))
				Expect(err.Error()).To(ContainSubstring(string(expected)))

				_, status, results, _ := dune.calls()
				Expect(status).To(Equal(2))
				Expect(results).To(Equal(0))
			},
			Entry("failed", "QUERY_STATE_FAILED", executor.StateFailed),
			Entry("cancelled", "CANCELLED", executor.StateCancelled),
			Entry("unrecognized", "QUERY_STATE_EXPIRED", executor.ExecutionState("QUERY_STATE_EXPIRED")),
		)

		It("reports a status answer without state as malformed", func() {
			dune.states = nil

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var malformed *executor.ErrMalformedResponse
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Phase).To(Equal(executor.PhasePolling))
		})

		It("reports a transport failure while polling", func() {
			dune.statusErr = errors.New("connection reset by peer")

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var transport *executor.ErrTransportFailure
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Phase).To(Equal(executor.PhasePolling))
			Expect(err.Error()).To(ContainSubstring("polling"))
		})

		It("reports an undecodable result as malformed", func() {
			dune.resultErr = client.NewErrDecode(client.EndpointResults, errors.New("unexpected token"))

			_, err := exec.ExecuteAndFetch(ctx, 1)
			var malformed *executor.ErrMalformedResponse
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Phase).To(Equal(executor.PhaseFetch))
		})

		It("aborts with cancelled when the context is cancelled while waiting", func() {
			dune.states = []string{"EXECUTING"}
			exec = executor.New(dune, executor.WithPollInterval(time.Hour))

			cctx, cancel := context.WithCancel(ctx)
			dune.onStatus = func(call int) {
				if call == 1 {
					cancel()
				}
			}

			start := time.Now()
			_, err := exec.ExecuteAndFetch(cctx, 1)
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			var cancelled *executor.ErrCancelled
			Expect(errors.As(err, &cancelled)).To(BeTrue())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(executor.Outcome(nil, err)).To(Equal(executor.OutcomeCancelled))
		})

		It("classifies a failed call on a cancelled context as cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			dune.executeErr = context.Canceled

			_, err := exec.ExecuteAndFetch(cctx, 1)
			var cancelled *executor.ErrCancelled
			Expect(errors.As(err, &cancelled)).To(BeTrue())
			Expect(cancelled.Phase).To(Equal(executor.PhaseSubmission))
		})

		It("reports a caller deadline passing while waiting as a timeout", func() {
			dune.states = []string{"EXECUTING"}
			exec = executor.New(dune, executor.WithPollInterval(time.Hour))

			dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := exec.ExecuteAndFetch(dctx, 1)
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))

			var timeout *executor.ErrTimeout
			Expect(errors.As(err, &timeout)).To(BeTrue())
			Expect(timeout.Phase).To(Equal(executor.PhasePolling))
			Expect(timeout.ExecutionID).To(Equal("01HX"))
			Expect(timeout.Attempts).To(Equal(1))
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(executor.Outcome(nil, err)).To(Equal(executor.OutcomeTimeout))
			Expect(recorder.last().Body["phase"]).To(Equal("polling"))
		})

		It("classifies a failed call after the caller deadline as a timeout", func() {
			dctx, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
			defer cancel()
			dune.executeErr = context.DeadlineExceeded

			_, err := exec.ExecuteAndFetch(dctx, 1)
			var timeout *executor.ErrTimeout
			Expect(errors.As(err, &timeout)).To(BeTrue())
			Expect(timeout.Phase).To(Equal(executor.PhaseSubmission))

			var cancelled *executor.ErrCancelled
			Expect(errors.As(err, &cancelled)).To(BeFalse())
		})
	})

	Context("FetchLatest", func() {
		It("never submits or polls", func() {
			dune.latest = resultsFromJSON(`{"execution_id":"01HY","result":{"rows":[{"x":"a,b"}]}}`)

			result, err := exec.FetchLatest(ctx, 42)
			Expect(err).To(BeNil())
			Expect(result.String()).To(Equal("x\n\"a,b\"\n"))
			Expect(result.ExecutionID).To(Equal("01HY"))

			execute, status, results, latest := dune.calls()
			Expect(execute).To(Equal(0))
			Expect(status).To(Equal(0))
			Expect(results).To(Equal(0))
			Expect(latest).To(Equal(1))
			Expect(recorder.kinds()).To(Equal([]string{events.LatestFetchedKind}))
		})

		It("returns the no data sentinel for empty rows", func() {
			dune.latest = resultsFromJSON(`{"result":{"rows":[]}}`)

			result, err := exec.FetchLatest(ctx, 42)
			Expect(err).To(BeNil())
			Expect(result.NoData).To(BeTrue())
		})

		It("reports transport failures in the fetch phase", func() {
			dune.latestErr = client.NewErrUnexpectedStatus(client.EndpointLatest, http.StatusNotFound, "not found")

			_, err := exec.FetchLatest(ctx, 42)
			var transport *executor.ErrTransportFailure
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Phase).To(Equal(executor.PhaseFetch))
			Expect(err.Error()).To(ContainSubstring("fetch"))
		})
	})
})
