package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
	inmemdb "github.com/trezcool/escola/storage/database/inmem"
	testutil "github.com/trezcool/escola/tests"
)

func TestGradeRepository(t *testing.T) {
	repo := inmemdb.NewGradeRepository(inmemdb.Open())
	ctx := context.Background()

	now := time.Now().UTC()
	r1 := testutil.CreateRecord(t, repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(8)}, now.Add(-time.Hour))
	r2 := testutil.CreateRecord(t, repo, "s1", "st2", "math", 2024, grade.Quarters{}, now)

	t.Run("returned records do not alias stored marks", func(t *testing.T) {
		got, err := repo.GetRecord(ctx, "s1", r1.ID)
		require.NoError(t, err)
		*got.Quarter1 = 0

		again, err := repo.GetRecord(ctx, "s1", r1.ID)
		require.NoError(t, err)
		assert.Equal(t, 8.0, *again.Quarter1)
	})

	t.Run("duplicate", func(t *testing.T) {
		dup := r1
		dup.ID = "x"
		_, err := repo.CreateRecord(ctx, dup)
		assert.Equal(t, grade.ErrRecordExists, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		recs, err := repo.QueryRecords(ctx, "s1", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []grade.Record{r2, r1}, recs)

		recs, err = repo.QueryRecords(ctx, "s1", &grade.QueryFilter{Status: grade.StatusApproved}, nil)
		require.NoError(t, err)
		assert.Equal(t, []grade.Record{r1}, recs)

		_, err = repo.QueryRecords(ctx, "s1", nil, []core.DBOrdering{{Field: "nope"}})
		assert.Error(t, err)
	})

	t.Run("mark range", func(t *testing.T) {
		lowest, highest, err := repo.MarkRange(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, testutil.Mark(8), lowest)
		assert.Equal(t, testutil.Mark(8), highest)

		lowest, highest, err = repo.MarkRange(ctx, "s2")
		require.NoError(t, err)
		assert.Nil(t, lowest)
		assert.Nil(t, highest)
	})

	t.Run("update and delete", func(t *testing.T) {
		upd := r2
		upd.SubjectID = "ignored"
		upd.ClassID = "3A"
		got, err := repo.UpdateRecord(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "math", got.SubjectID)
		assert.Equal(t, "3A", got.ClassID)

		upd.SchoolID = "s2"
		_, err = repo.UpdateRecord(ctx, upd)
		assert.Equal(t, grade.ErrNotFound, errors.Cause(err))

		n, err := repo.DeleteRecordsByID(ctx, "s1", []string{r1.ID, r2.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		schools, err := repo.SchoolIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, schools)
	})
}

func TestSettingsRepository(t *testing.T) {
	repo := inmemdb.NewSettingsRepository(inmemdb.Open())
	ctx := context.Background()

	_, err := repo.GetGradeConfig(ctx, "s1")
	assert.Equal(t, grade.ErrNotFound, errors.Cause(err))

	cfg := grade.Config{MinPassingGrade: 5, MinGrade: 0, MaxGrade: 10, OutOfRange: grade.PolicyClamp}
	_, err = repo.SaveGradeConfig(ctx, "s1", cfg)
	require.NoError(t, err)

	got, err := repo.GetGradeConfig(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
