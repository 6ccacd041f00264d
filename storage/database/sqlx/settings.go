package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

type settingsRow struct {
	SchoolID        string    `db:"school_id"`
	MinPassingGrade float64   `db:"min_passing_grade"`
	MinGrade        float64   `db:"min_grade"`
	MaxGrade        float64   `db:"max_grade"`
	OutOfRange      string    `db:"out_of_range"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type settingsRepository struct {
	exec core.DBExecutor
}

var _ grade.SettingsRepository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(exec core.DBExecutor) grade.SettingsRepository {
	return &settingsRepository{exec: exec}
}

func (repo settingsRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo settingsRepository) GetGradeConfig(ctx context.Context, schoolID string, exec ...core.DBExecutor) (grade.Config, error) {
	ex := repo.getExec(exec)
	q := ex.Rebind(`SELECT school_id, min_passing_grade, min_grade, max_grade, out_of_range, updated_at
		FROM school_grade_settings WHERE school_id = ?`)

	var row settingsRow
	if err := ex.GetContext(ctx, &row, q, schoolID); err != nil {
		return grade.Config{}, trapNoRowsErr(err, "finding grade settings")
	}
	return grade.Config{
		MinPassingGrade: row.MinPassingGrade,
		MinGrade:        row.MinGrade,
		MaxGrade:        row.MaxGrade,
		OutOfRange:      grade.OutOfRangePolicy(row.OutOfRange),
	}, nil
}

// SaveGradeConfig upserts; ON CONFLICT works on both postgres and sqlite.
func (repo settingsRepository) SaveGradeConfig(ctx context.Context, schoolID string, cfg grade.Config, exec ...core.DBExecutor) (grade.Config, error) {
	row := settingsRow{
		SchoolID:        schoolID,
		MinPassingGrade: cfg.MinPassingGrade,
		MinGrade:        cfg.MinGrade,
		MaxGrade:        cfg.MaxGrade,
		OutOfRange:      string(cfg.OutOfRange),
		UpdatedAt:       time.Now().UTC(),
	}
	q := `INSERT INTO school_grade_settings (school_id, min_passing_grade, min_grade, max_grade, out_of_range, updated_at)
		VALUES (:school_id, :min_passing_grade, :min_grade, :max_grade, :out_of_range, :updated_at)
		ON CONFLICT (school_id) DO UPDATE SET
			min_passing_grade = excluded.min_passing_grade,
			min_grade = excluded.min_grade,
			max_grade = excluded.max_grade,
			out_of_range = excluded.out_of_range,
			updated_at = excluded.updated_at`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, row); err != nil {
		return grade.Config{}, errors.Wrap(err, "saving grade settings")
	}
	return repo.GetGradeConfig(ctx, schoolID, exec...)
}
