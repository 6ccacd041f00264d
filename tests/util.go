package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
	logsvc "github.com/trezcool/escola/services/logger"
	"github.com/trezcool/escola/storage/database"
)

// NewConfig returns the app config with test settings: in-memory sqlite, default grades.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.SecretKey = "test-secret"
	conf.Database.Engine = database.EngineSqlite
	conf.Database.Path = "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	conf.Grades = core.GradesConfig{
		MinPassingGrade:  7,
		MinGrade:         0,
		MaxGrade:         10,
		OutOfRangePolicy: string(grade.PolicyClamp),
		Locale:           "pt-BR",
	}
	return conf
}

// NewLogger returns a logger that reports nowhere.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB opens a fresh, migrated in-memory database, closed when the test ends.
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	t.Helper()

	var c *core.Config
	if len(conf) > 0 {
		c = conf[0]
	} else {
		c = NewConfig()
	}

	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// Mark returns a pointer to v, for quarter literals.
func Mark(v float64) *float64 {
	return &v
}

// CreateRecord stores a derived record with the given quarters (nil entries stay absent).
func CreateRecord(
	t *testing.T,
	repo grade.Repository,
	schoolID, studentID, subjectID string,
	year int,
	quarters grade.Quarters,
	createdAt ...time.Time,
) grade.Record {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	rec := grade.Record{
		ID:           uuid.New().String(),
		SchoolID:     schoolID,
		StudentID:    studentID,
		SubjectID:    subjectID,
		AcademicYear: year,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	rec.SetQuarters(quarters)
	rec.Derive(grade.DefaultConfig())

	rec, err := repo.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}
