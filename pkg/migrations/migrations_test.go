package migrations_test

import (
	"os"
	"path/filepath"

	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/store"
	"github.com/dunelink/dunelink/pkg/migrations"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("migrations", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Type = store.DialectSqlite
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "migrations.db")
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
	})

	AfterAll(func() {
		s.Close()
	})

	tableExists := func(name string) bool {
		var count int64
		tx := gormdb.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
		Expect(tx.Error).To(BeNil())
		return count == 1
	}

	Context("store migrations", Ordered, func() {
		It("fails to migrate the db -- migration folder does not exist", func() {
			err := migrations.MigrateStore(gormdb, "some folder")
			Expect(err).NotTo(BeNil())
		})

		It("fails to migrate the db -- migration folder is a file", func() {
			f := filepath.Join(GinkgoT().TempDir(), "file.sql")
			Expect(os.WriteFile(f, []byte("-- nothing"), 0o600)).To(Succeed())

			err := migrations.MigrateStore(gormdb, f)
			Expect(err).NotTo(BeNil())
		})

		It("successfully migrates the db with the embedded migrations", func() {
			Expect(migrations.MigrateStore(gormdb, "")).To(Succeed())
			Expect(tableExists("executions")).To(BeTrue())
			Expect(tableExists("goose_db_version")).To(BeTrue())
		})

		It("is idempotent", func() {
			Expect(migrations.MigrateStore(gormdb, "")).To(Succeed())
			Expect(tableExists("executions")).To(BeTrue())
		})

		It("successfully migrates from a folder", func() {
			gormdb.Exec("DROP TABLE IF EXISTS executions;")
			gormdb.Exec("DROP TABLE IF EXISTS goose_db_version;")

			cwd, err := os.Getwd()
			Expect(err).To(BeNil())
			Expect(migrations.MigrateStore(gormdb, filepath.Join(cwd, "sql"))).To(Succeed())
			Expect(tableExists("executions")).To(BeTrue())
		})
	})
})
