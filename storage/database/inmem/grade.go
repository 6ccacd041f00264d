package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

var errUnknownOrdering = errors.New("unknown ordering field")

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) CreateRecord(_ context.Context, rec grade.Record, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, r := range repo.db.table {
		if r.SchoolID == rec.SchoolID && r.StudentID == rec.StudentID &&
			r.SubjectID == rec.SubjectID && r.AcademicYear == rec.AcademicYear {
			return grade.Record{}, grade.ErrRecordExists
		}
	}
	stored := clone(rec)
	repo.db.table[rec.ID] = &stored
	return clone(stored), nil
}

func (repo *gradeRepository) GetRecord(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rec, ok := repo.db.table[id]
	if !ok || rec.SchoolID != schoolID {
		return grade.Record{}, grade.ErrNotFound
	}
	return clone(*rec), nil
}

func matches(rec grade.Record, filter *grade.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if len(filter.IDs) > 0 && !containsString(filter.IDs, rec.ID) {
		return false
	}
	return (filter.StudentID == "" || rec.StudentID == filter.StudentID) &&
		(filter.ClassID == "" || rec.ClassID == filter.ClassID) &&
		(filter.SubjectID == "" || rec.SubjectID == filter.SubjectID) &&
		(filter.AcademicYear == 0 || rec.AcademicYear == filter.AcademicYear) &&
		(filter.Status == "" || rec.Status == filter.Status)
}

func (repo *gradeRepository) QueryRecords(_ context.Context, schoolID string, filter *grade.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]grade.Record, error) {
	for _, ord := range ordering {
		if _, ok := comparators[ord.Field]; !ok {
			return nil, errors.Wrap(errUnknownOrdering, ord.Field)
		}
	}

	repo.db.mutex.RLock()
	recs := make([]grade.Record, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		if rec.SchoolID == schoolID && matches(*rec, filter) {
			recs = append(recs, clone(*rec))
		}
	}
	repo.db.mutex.RUnlock()

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}, {Field: "id", Ascending: true}}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			c := comparators[ord.Field](recs[i], recs[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return recs, nil
}

func (repo *gradeRepository) UpdateRecord(_ context.Context, rec grade.Record, _ ...core.DBExecutor) (grade.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[rec.ID]
	if !ok || orig.SchoolID != rec.SchoolID {
		return grade.Record{}, grade.ErrNotFound
	}

	// identity columns are immutable
	updated := clone(rec)
	updated.StudentID = orig.StudentID
	updated.SubjectID = orig.SubjectID
	updated.AcademicYear = orig.AcademicYear
	updated.CreatedAt = orig.CreatedAt
	repo.db.table[rec.ID] = &updated
	return clone(updated), nil
}

func (repo *gradeRepository) DeleteRecordsByID(_ context.Context, schoolID string, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if rec, ok := repo.db.table[id]; ok && rec.SchoolID == schoolID {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *gradeRepository) SchoolIDs(_ context.Context, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, rec := range repo.db.table {
		if _, ok := seen[rec.SchoolID]; !ok {
			seen[rec.SchoolID] = struct{}{}
			ids = append(ids, rec.SchoolID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *gradeRepository) MarkRange(_ context.Context, schoolID string, _ ...core.DBExecutor) (*float64, *float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var lowest, highest *float64
	for _, rec := range repo.db.table {
		if rec.SchoolID != schoolID {
			continue
		}
		for _, v := range rec.Quarters().Present() {
			v := v
			if lowest == nil || v < *lowest {
				lowest = &v
			}
			if highest == nil || v > *highest {
				highest = &v
			}
		}
	}
	return lowest, highest, nil
}

// comparators order records by a column, the way the SQL repositories do (NULLs first).
var comparators = map[string]func(a, b grade.Record) int{
	"id":            func(a, b grade.Record) int { return strings.Compare(a.ID, b.ID) },
	"student_id":    func(a, b grade.Record) int { return strings.Compare(a.StudentID, b.StudentID) },
	"subject_id":    func(a, b grade.Record) int { return strings.Compare(a.SubjectID, b.SubjectID) },
	"class_id":      func(a, b grade.Record) int { return strings.Compare(a.ClassID, b.ClassID) },
	"status":        func(a, b grade.Record) int { return strings.Compare(string(a.Status), string(b.Status)) },
	"academic_year": func(a, b grade.Record) int { return a.AcademicYear - b.AcademicYear },
	"final_average": func(a, b grade.Record) int { return compareMarks(a.FinalAverage, b.FinalAverage) },
	"created_at": func(a, b grade.Record) int {
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
		return 0
	},
	"updated_at": func(a, b grade.Record) int {
		switch {
		case a.UpdatedAt.Before(b.UpdatedAt):
			return -1
		case a.UpdatedAt.After(b.UpdatedAt):
			return 1
		}
		return 0
	},
}

func compareMarks(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// clone deep-copies the quarter pointers so callers never alias stored marks.
func clone(rec grade.Record) grade.Record {
	rec.SetQuarters(rec.Quarters())
	if rec.FinalAverage != nil {
		avg := *rec.FinalAverage
		rec.FinalAverage = &avg
	}
	return rec
}
