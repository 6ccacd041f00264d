package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

const gradeColumns = `id, school_id, student_id, subject_id, class_id, academic_year,
	quarter1, quarter2, quarter3, quarter4, final_average, status, created_at, updated_at`

var (
	errUnknownOrdering = errors.New("unknown ordering field")

	// orderable columns; anything else is rejected before reaching SQL
	gradeOrderings = map[string]string{
		"id":            "id",
		"student_id":    "student_id",
		"subject_id":    "subject_id",
		"class_id":      "class_id",
		"academic_year": "academic_year",
		"final_average": "final_average",
		"status":        "status",
		"created_at":    "created_at",
		"updated_at":    "updated_at",
	}
)

// gradeRow is the grade_records row. Absent marks are SQL NULLs.
type gradeRow struct {
	ID           string       `db:"id"`
	SchoolID     string       `db:"school_id"`
	StudentID    string       `db:"student_id"`
	SubjectID    string       `db:"subject_id"`
	ClassID      null.String  `db:"class_id"`
	AcademicYear int          `db:"academic_year"`
	Quarter1     null.Float64 `db:"quarter1"`
	Quarter2     null.Float64 `db:"quarter2"`
	Quarter3     null.Float64 `db:"quarter3"`
	Quarter4     null.Float64 `db:"quarter4"`
	FinalAverage null.Float64 `db:"final_average"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) grade.Repository {
	return &gradeRepository{exec: exec}
}

func (repo gradeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func toRow(rec grade.Record) gradeRow {
	return gradeRow{
		ID:           rec.ID,
		SchoolID:     rec.SchoolID,
		StudentID:    rec.StudentID,
		SubjectID:    rec.SubjectID,
		ClassID:      null.NewString(rec.ClassID, rec.ClassID != ""),
		AcademicYear: rec.AcademicYear,
		Quarter1:     null.Float64FromPtr(rec.Quarter1),
		Quarter2:     null.Float64FromPtr(rec.Quarter2),
		Quarter3:     null.Float64FromPtr(rec.Quarter3),
		Quarter4:     null.Float64FromPtr(rec.Quarter4),
		FinalAverage: null.Float64FromPtr(rec.FinalAverage),
		Status:       string(rec.Status),
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
}

func (row gradeRow) record() grade.Record {
	return grade.Record{
		ID:           row.ID,
		SchoolID:     row.SchoolID,
		StudentID:    row.StudentID,
		SubjectID:    row.SubjectID,
		ClassID:      row.ClassID.String,
		AcademicYear: row.AcademicYear,
		Quarter1:     row.Quarter1.Ptr(),
		Quarter2:     row.Quarter2.Ptr(),
		Quarter3:     row.Quarter3.Ptr(),
		Quarter4:     row.Quarter4.Ptr(),
		FinalAverage: row.FinalAverage.Ptr(),
		Status:       grade.Status(row.Status),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps "no rows" to grade.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return grade.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation recognizes unique constraint errors of both postgres and sqlite.
func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (repo gradeRepository) CreateRecord(ctx context.Context, rec grade.Record, exec ...core.DBExecutor) (grade.Record, error) {
	q := `INSERT INTO grade_records (` + gradeColumns + `) VALUES (
		:id, :school_id, :student_id, :subject_id, :class_id, :academic_year,
		:quarter1, :quarter2, :quarter3, :quarter4, :final_average, :status, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, q, toRow(rec)); err != nil {
		if isUniqueViolation(err) {
			return grade.Record{}, grade.ErrRecordExists
		}
		return grade.Record{}, errors.Wrap(err, "inserting grade record")
	}
	return repo.GetRecord(ctx, rec.SchoolID, rec.ID, exec...)
}

func (repo gradeRepository) GetRecord(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (grade.Record, error) {
	ex := repo.getExec(exec)
	q := ex.Rebind(`SELECT ` + gradeColumns + ` FROM grade_records WHERE school_id = ? AND id = ?`)

	var row gradeRow
	if err := ex.GetContext(ctx, &row, q, schoolID, id); err != nil {
		return grade.Record{}, trapNoRowsErr(err, "finding grade record")
	}
	return row.record(), nil
}

func orderBy(ordering []core.DBOrdering) (string, error) {
	if len(ordering) == 0 {
		return " ORDER BY created_at DESC, id ASC", nil
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := gradeOrderings[ord.Field]
		if !ok {
			return "", errors.Wrap(errUnknownOrdering, ord.Field)
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return " ORDER BY " + strings.Join(clauses, ", "), nil
}

func (repo gradeRepository) QueryRecords(ctx context.Context, schoolID string, filter *grade.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]grade.Record, error) {
	order, err := orderBy(ordering)
	if err != nil {
		return nil, err
	}

	where := []string{"school_id = ?"}
	args := []interface{}{schoolID}
	if filter != nil {
		if len(filter.IDs) > 0 {
			where = append(where, "id IN (?)")
			args = append(args, filter.IDs)
		}
		if filter.StudentID != "" {
			where = append(where, "student_id = ?")
			args = append(args, filter.StudentID)
		}
		if filter.ClassID != "" {
			where = append(where, "class_id = ?")
			args = append(args, filter.ClassID)
		}
		if filter.SubjectID != "" {
			where = append(where, "subject_id = ?")
			args = append(args, filter.SubjectID)
		}
		if filter.AcademicYear != 0 {
			where = append(where, "academic_year = ?")
			args = append(args, filter.AcademicYear)
		}
		if filter.Status != "" {
			where = append(where, "status = ?")
			args = append(args, string(filter.Status))
		}
	}

	q := `SELECT ` + gradeColumns + ` FROM grade_records WHERE ` + strings.Join(where, " AND ") + order
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building grade records query")
	}

	ex := repo.getExec(exec)
	var rows []gradeRow
	if err = ex.SelectContext(ctx, &rows, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying grade records")
	}

	recs := make([]grade.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

// UpdateRecord writes the mutable columns: class, quarters and the derived fields.
func (repo gradeRepository) UpdateRecord(ctx context.Context, rec grade.Record, exec ...core.DBExecutor) (grade.Record, error) {
	q := `UPDATE grade_records SET
		class_id = :class_id,
		quarter1 = :quarter1, quarter2 = :quarter2, quarter3 = :quarter3, quarter4 = :quarter4,
		final_average = :final_average, status = :status, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, toRow(rec))
	if err != nil {
		return grade.Record{}, errors.Wrap(err, "updating grade record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grade.Record{}, grade.ErrNotFound
	}
	return repo.GetRecord(ctx, rec.SchoolID, rec.ID, exec...)
}

func (repo gradeRepository) DeleteRecordsByID(ctx context.Context, schoolID string, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`DELETE FROM grade_records WHERE school_id = ? AND id IN (?)`, schoolID, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}

	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting grade records")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting grade records")
	}
	return int(n), nil
}

func (repo gradeRepository) SchoolIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	if err := repo.getExec(exec).SelectContext(ctx, &ids, `SELECT DISTINCT school_id FROM grade_records ORDER BY school_id`); err != nil {
		return nil, errors.Wrap(err, "listing schools")
	}
	return ids, nil
}

func (repo gradeRepository) MarkRange(ctx context.Context, schoolID string, exec ...core.DBExecutor) (*float64, *float64, error) {
	ex := repo.getExec(exec)
	q := ex.Rebind(`SELECT MIN(mark) AS lowest, MAX(mark) AS highest FROM (
		SELECT quarter1 AS mark FROM grade_records WHERE school_id = ?
		UNION ALL SELECT quarter2 FROM grade_records WHERE school_id = ?
		UNION ALL SELECT quarter3 FROM grade_records WHERE school_id = ?
		UNION ALL SELECT quarter4 FROM grade_records WHERE school_id = ?
	) marks`)

	var res struct {
		Lowest  null.Float64 `db:"lowest"`
		Highest null.Float64 `db:"highest"`
	}
	if err := ex.GetContext(ctx, &res, q, schoolID, schoolID, schoolID, schoolID); err != nil {
		return nil, nil, errors.Wrap(err, "finding stored grades range")
	}
	return res.Lowest.Ptr(), res.Highest.Ptr(), nil
}
