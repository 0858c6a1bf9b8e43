package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/dunelink/dunelink/internal/store"
	"github.com/dunelink/dunelink/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("execution store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		now    time.Time
	)

	BeforeAll(func() {
		gormdb = newTestDB(GinkgoT().TempDir())
		s = store.NewStore(gormdb)
		now = time.Now().UTC().Truncate(time.Second)
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM executions;")
	})

	newExecution := func(queryID int64, outcome string, startedAt time.Time) model.Execution {
		return model.Execution{
			QueryID:     queryID,
			ExecutionID: uuid.NewString(),
			Outcome:     outcome,
			State:       "COMPLETED",
			Attempts:    3,
			RowCount:    10,
			StartedAt:   startedAt,
			FinishedAt:  startedAt.Add(15 * time.Second),
		}
	}

	Context("create", func() {
		It("successfully records an execution", func() {
			created, err := s.Execution().Create(context.TODO(), newExecution(1234, "success", now))
			Expect(err).To(BeNil())
			Expect(created.ID).NotTo(Equal(uuid.Nil))

			var count int64
			tx := gormdb.Raw("SELECT COUNT(*) FROM executions;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(int64(1)))

			got, err := s.Execution().Get(context.TODO(), created.ID)
			Expect(err).To(BeNil())
			Expect(got.QueryID).To(Equal(int64(1234)))
			Expect(got.Outcome).To(Equal("success"))
			Expect(got.Duration()).To(Equal(15 * time.Second))
		})

		It("refuses a duplicated id", func() {
			e := newExecution(1, "success", now)
			e.ID = uuid.New()
			_, err := s.Execution().Create(context.TODO(), e)
			Expect(err).To(BeNil())

			_, err = s.Execution().Create(context.TODO(), e)
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("returns ErrRecordNotFound for an unknown id", func() {
			_, err := s.Execution().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("lists the executions of one query newest first", func() {
			for i := 0; i < 5; i++ {
				_, err := s.Execution().Create(context.TODO(), newExecution(1, "success", now.Add(time.Duration(i)*time.Minute)))
				Expect(err).To(BeNil())
			}
			_, err := s.Execution().Create(context.TODO(), newExecution(2, "timeout", now))
			Expect(err).To(BeNil())

			executions, err := s.Execution().List(context.TODO(),
				store.NewExecutionQueryFilter().ByQueryID(1),
				store.NewExecutionQueryOptions().WithNewestFirst().WithLimit(3))
			Expect(err).To(BeNil())
			Expect(executions).To(HaveLen(3))
			Expect(executions[0].StartedAt.Equal(now.Add(4 * time.Minute))).To(BeTrue())
			Expect(executions[2].StartedAt.Equal(now.Add(2 * time.Minute))).To(BeTrue())
		})

		It("filters by outcome", func() {
			_, _ = s.Execution().Create(context.TODO(), newExecution(1, "success", now))
			_, _ = s.Execution().Create(context.TODO(), newExecution(1, "execution_failed", now))

			executions, err := s.Execution().List(context.TODO(), store.NewExecutionQueryFilter().ByOutcome("execution_failed"), nil)
			Expect(err).To(BeNil())
			Expect(executions).To(HaveLen(1))

			count, err := s.Execution().Count(context.TODO(), store.NewExecutionQueryFilter().ByQueryID(1))
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(2)))
		})
	})

	Context("delete", func() {
		It("deletes executions started before a point in time", func() {
			_, _ = s.Execution().Create(context.TODO(), newExecution(1, "success", now.Add(-48*time.Hour)))
			_, _ = s.Execution().Create(context.TODO(), newExecution(1, "success", now))

			deleted, err := s.Execution().Delete(context.TODO(), store.NewExecutionQueryFilter().StartedBefore(now.Add(-24*time.Hour)))
			Expect(err).To(BeNil())
			Expect(deleted).To(Equal(int64(1)))

			count, err := s.Execution().Count(context.TODO(), nil)
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})

		It("refuses to delete without a filter", func() {
			_, err := s.Execution().Delete(context.TODO(), store.NewExecutionQueryFilter())
			Expect(err).NotTo(BeNil())
		})
	})
})
