package grade

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

var (
	// errors
	ErrNotFound     = errors.New("grade record not found")
	ErrRecordExists = errors.New("a grade record already exists for this student, subject and academic year")
	ErrInvalidGrade = errors.New("invalid grade")
	ErrMarksOutside = errors.New("stored grades fall outside the grade bounds")

	// OrderableFields are the record fields repositories can order by.
	OrderableFields = []string{
		"id", "student_id", "subject_id", "class_id", "academic_year",
		"final_average", "status", "created_at", "updated_at",
	}
)

type (
	// Repository stores grade records. Every lookup is scoped to a school.
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Record, error)
		// QueryRecords applies AND operation on available QueryFilter fields.
		QueryRecords(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		DeleteRecordsByID(ctx context.Context, schoolID string, ids []string, exec ...core.DBExecutor) (int, error)
		SchoolIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		// MarkRange returns the lowest and highest stored quarter of the school (nil when it has none).
		MarkRange(ctx context.Context, schoolID string, exec ...core.DBExecutor) (lowest, highest *float64, err error)
	}

	// SettingsRepository stores per-school grade configs.
	SettingsRepository interface {
		// GetGradeConfig returns ErrNotFound when the school uses the defaults.
		GetGradeConfig(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Config, error)
		SaveGradeConfig(ctx context.Context, schoolID string, cfg Config, exec ...core.DBExecutor) (Config, error)
	}

	Service interface {
		Config(ctx context.Context, schoolID string) (Config, error)
		SaveConfig(ctx context.Context, schoolID string, us UpdateSettings) (Config, error)
		Normalize(ctx context.Context, schoolID string, in Input) (*float64, error)
		Create(ctx context.Context, schoolID string, nr NewRecord) (Record, error)
		Get(ctx context.Context, schoolID, id string) (Record, error)
		Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Record, error)
		Delete(ctx context.Context, schoolID string, ids ...string) (int, error)
		SetQuarter(ctx context.Context, schoolID, id string, uq UpdateQuarter) (Record, error)
		SetQuarters(ctx context.Context, schoolID, id string, uq UpdateQuarters) (Record, error)
		Recompute(ctx context.Context, schoolID string) (int, error)
		RecomputeAll(ctx context.Context) (int, error)
		ReportCard(ctx context.Context, schoolID, studentID string, year int) (ReportCard, error)
		SendReportCard(ctx context.Context, schoolID string, sr SendReportCard) error
	}

	// ServiceDeps are the collaborators of the grade service. DB is optional;
	// without it nothing runs in a transaction.
	ServiceDeps struct {
		DB           core.DB
		Repo         Repository
		SettingsRepo SettingsRepository
		MailSvc      core.EmailService
		Defaults     Config
		Conf         *core.Config
		Logger       core.Logger
	}

	service struct {
		db           core.DB
		repo         Repository
		settingsRepo SettingsRepository
		mailSvc      core.EmailService
		defaults     Config
		conf         *core.Config
		logger       core.Logger
		now          func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps ServiceDeps) Service {
	return &service{
		db:           deps.DB,
		repo:         deps.Repo,
		settingsRepo: deps.SettingsRepo,
		mailSvc:      deps.MailSvc,
		defaults:     deps.Defaults,
		conf:         deps.Conf,
		logger:       deps.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) withTx(ctx context.Context, fn func(exec []core.DBExecutor) error) error {
	if svc.db == nil {
		return fn(nil)
	}
	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err := fn([]core.DBExecutor{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (svc *service) config(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Config, error) {
	cfg, err := svc.settingsRepo.GetGradeConfig(ctx, schoolID, exec...)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return svc.defaults, nil
		}
		return Config{}, errors.Wrap(err, "loading grade config")
	}
	return cfg, nil
}

// Config returns the school's grade config, or the defaults when it has none.
func (svc *service) Config(ctx context.Context, schoolID string) (Config, error) {
	return svc.config(ctx, schoolID)
}

// SaveConfig stores the school's grade config and re-derives its records under it.
// Bounds that would leave a stored quarter outside [min, max] are rejected.
func (svc *service) SaveConfig(ctx context.Context, schoolID string, us UpdateSettings) (Config, error) {
	cfg := us.config()
	if err := cfg.Validate(); err != nil {
		field := "min_passing_grade"
		switch errors.Cause(err) {
		case ErrInvalidBounds:
			field = "max_grade"
		case ErrUnknownPolicy:
			field = "out_of_range"
		}
		return Config{}, core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}

	var (
		saved   Config
		updated int
	)
	err := svc.withTx(ctx, func(exec []core.DBExecutor) error {
		lowest, highest, err := svc.repo.MarkRange(ctx, schoolID, exec...)
		if err != nil {
			return errors.Wrap(err, "finding stored grades range")
		}
		// the new bounds must still hold every stored mark
		if lowest != nil && *lowest < cfg.MinGrade {
			return core.NewValidationError(ErrMarksOutside, core.FieldError{
				Field: "min_grade",
				Error: fmt.Sprintf("stored grades go down to %.2f", *lowest),
			})
		}
		if highest != nil && *highest > cfg.MaxGrade {
			return core.NewValidationError(ErrMarksOutside, core.FieldError{
				Field: "max_grade",
				Error: fmt.Sprintf("stored grades go up to %.2f", *highest),
			})
		}

		if saved, err = svc.settingsRepo.SaveGradeConfig(ctx, schoolID, cfg, exec...); err != nil {
			return errors.Wrap(err, "saving grade config")
		}
		updated, err = svc.recompute(ctx, schoolID, saved, exec...)
		return err
	})
	if err != nil {
		return Config{}, err
	}
	if updated > 0 {
		svc.logger.Info(fmt.Sprintf("grade config of school %s changed: %d records re-derived", schoolID, updated))
	}
	return saved, nil
}

// Normalize turns a raw entry into a grade under the school's config.
func (svc *service) Normalize(ctx context.Context, schoolID string, in Input) (*float64, error) {
	cfg, err := svc.Config(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return cfg.NormalizeInput(in), nil
}

// normalizeField normalizes a raw entry bound to a request field.
// An empty entry clears the quarter; an unusable one is a validation error.
func normalizeField(cfg Config, in Input, field string) (*float64, error) {
	if in.IsZero() {
		return nil, nil
	}
	v := cfg.NormalizeInput(in)
	if v == nil {
		return nil, core.NewValidationError(
			errors.Wrapf(ErrInvalidGrade, "%s: %q", field, in.String()),
			core.FieldError{Field: field, Error: cfg.rangeText()},
		)
	}
	return v, nil
}

func normalizeQuarters(cfg Config, inputs [QuartersCount]Input) (Quarters, error) {
	var (
		q      Quarters
		fields []core.FieldError
	)
	for i, in := range inputs {
		field := fmt.Sprintf("quarter%d", i+1)
		v, err := normalizeField(cfg, in, field)
		if err != nil {
			fields = append(fields, core.FieldError{Field: field, Error: cfg.rangeText()})
			continue
		}
		q[i] = v
	}
	if len(fields) > 0 {
		return Quarters{}, core.NewValidationError(ErrInvalidGrade, fields...)
	}
	return q, nil
}

func (svc *service) Create(ctx context.Context, schoolID string, nr NewRecord) (Record, error) {
	var rec Record
	err := svc.withTx(ctx, func(exec []core.DBExecutor) error {
		cfg, err := svc.config(ctx, schoolID, exec...)
		if err != nil {
			return err
		}
		q, err := normalizeQuarters(cfg, nr.inputs())
		if err != nil {
			return err
		}

		now := svc.now()
		rec = Record{
			ID:           uuid.New().String(),
			SchoolID:     schoolID,
			StudentID:    nr.StudentID,
			SubjectID:    nr.SubjectID,
			ClassID:      nr.ClassID,
			AcademicYear: nr.AcademicYear,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		rec.SetQuarters(q)
		rec.Derive(cfg)

		if rec, err = svc.repo.CreateRecord(ctx, rec, exec...); err != nil {
			if errors.Cause(err) == ErrRecordExists {
				return core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: ErrRecordExists.Error()})
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, schoolID, id)
}

func (svc *service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, schoolID, filter, ordering)
}

func (svc *service) Delete(ctx context.Context, schoolID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteRecordsByID(ctx, schoolID, ids)
}

// update loads a record, lets change set its quarters, derives and persists it.
func (svc *service) update(ctx context.Context, schoolID, id string, change func(cfg Config, rec *Record) error) (Record, error) {
	var rec Record
	err := svc.withTx(ctx, func(exec []core.DBExecutor) error {
		cfg, err := svc.config(ctx, schoolID, exec...)
		if err != nil {
			return err
		}
		if rec, err = svc.repo.GetRecord(ctx, schoolID, id, exec...); err != nil {
			return err
		}
		if err = change(cfg, &rec); err != nil {
			return err
		}
		rec.Derive(cfg)
		rec.UpdatedAt = svc.now()
		rec, err = svc.repo.UpdateRecord(ctx, rec, exec...)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (svc *service) SetQuarter(ctx context.Context, schoolID, id string, uq UpdateQuarter) (Record, error) {
	return svc.update(ctx, schoolID, id, func(cfg Config, rec *Record) error {
		v, err := normalizeField(cfg, uq.Value, "value")
		if err != nil {
			return err
		}
		if err := rec.SetQuarter(uq.Quarter, v); err != nil {
			return core.NewFieldValidationError(err, "quarter")
		}
		return nil
	})
}

func (svc *service) SetQuarters(ctx context.Context, schoolID, id string, uq UpdateQuarters) (Record, error) {
	return svc.update(ctx, schoolID, id, func(cfg Config, rec *Record) error {
		q, err := normalizeQuarters(cfg, uq.inputs())
		if err != nil {
			return err
		}
		rec.SetQuarters(q)
		if uq.ClassID != nil {
			rec.ClassID = *uq.ClassID
		}
		return nil
	})
}

// recompute re-derives every record of the school under cfg and persists the changed ones.
func (svc *service) recompute(ctx context.Context, schoolID string, cfg Config, exec ...core.DBExecutor) (int, error) {
	recs, err := svc.repo.QueryRecords(ctx, schoolID, nil, nil, exec...)
	if err != nil {
		return 0, err
	}

	var updated int
	now := svc.now()
	for _, rec := range recs {
		if !rec.Derive(cfg) {
			continue
		}
		rec.UpdatedAt = now
		if _, err := svc.repo.UpdateRecord(ctx, rec, exec...); err != nil {
			return updated, errors.Wrapf(err, "updating record %s", rec.ID)
		}
		updated++
	}
	return updated, nil
}

// Recompute re-derives final averages and statuses of a school from one config snapshot.
// It returns the number of records that changed.
func (svc *service) Recompute(ctx context.Context, schoolID string) (int, error) {
	var updated int
	err := svc.withTx(ctx, func(exec []core.DBExecutor) error {
		cfg, err := svc.config(ctx, schoolID, exec...)
		if err != nil {
			return err
		}
		updated, err = svc.recompute(ctx, schoolID, cfg, exec...)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "recomputing school %s", schoolID)
	}
	return updated, nil
}

// RecomputeAll runs Recompute for every school holding records.
// A failing school is logged and skipped; the first error is returned once all schools ran.
func (svc *service) RecomputeAll(ctx context.Context) (int, error) {
	schoolIDs, err := svc.repo.SchoolIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing schools")
	}

	var (
		total    int
		firstErr error
	)
	for _, schoolID := range schoolIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := svc.Recompute(ctx, schoolID)
		if err != nil {
			svc.logger.Error(err.Error(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

func (svc *service) ReportCard(ctx context.Context, schoolID, studentID string, year int) (ReportCard, error) {
	filter := &QueryFilter{StudentID: studentID, AcademicYear: year}
	ordering := []core.DBOrdering{{Field: "subject_id", Ascending: true}}
	recs, err := svc.repo.QueryRecords(ctx, schoolID, filter, ordering)
	if err != nil {
		return ReportCard{}, err
	}
	return newReportCard(schoolID, studentID, year, recs), nil
}

type (
	reportCardRow struct {
		Subject      string
		Quarter1     string
		Quarter2     string
		Quarter3     string
		Quarter4     string
		FinalAverage string
		Status       string
	}

	reportCardData struct {
		AppName        string
		Lang           string
		RecipientName  string
		StudentName    string
		AcademicYear   int
		Rows           []reportCardRow
		Approved       int
		Failed         int
		InProgress     int
		OverallAverage string
		Attendance     string
	}
)

func (svc *service) SendReportCard(ctx context.Context, schoolID string, sr SendReportCard) error {
	rc, err := svc.ReportCard(ctx, schoolID, sr.StudentID, sr.AcademicYear)
	if err != nil {
		return err
	}
	if len(rc.Records) == 0 {
		return errors.Wrapf(ErrNotFound, "report card of %s for %d", sr.StudentID, sr.AcademicYear)
	}

	rc.SetAttendance(sr.ClassesAttended, sr.ClassesTotal)

	f := NewFormatter(svc.conf.Grades.Locale)
	studentName := sr.StudentName
	if studentName == "" {
		studentName = sr.StudentID
	}
	data := reportCardData{
		AppName:        svc.conf.AppName,
		Lang:           f.Lang(),
		RecipientName:  sr.Name,
		StudentName:    studentName,
		AcademicYear:   rc.AcademicYear,
		Approved:       rc.Approved,
		Failed:         rc.Failed,
		InProgress:     rc.InProgress,
		OverallAverage: f.Mark(rc.OverallAverage),
	}
	if rc.Attendance != nil {
		data.Attendance = f.Percent(*rc.Attendance)
	}
	for _, rec := range rc.Records {
		data.Rows = append(data.Rows, reportCardRow{
			Subject:      rec.SubjectID,
			Quarter1:     f.Mark(rec.Quarter1),
			Quarter2:     f.Mark(rec.Quarter2),
			Quarter3:     f.Mark(rec.Quarter3),
			Quarter4:     f.Mark(rec.Quarter4),
			FinalAverage: f.Mark(rec.FinalAverage),
			Status:       f.Status(rec.Status),
		})
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{sr.recipient()},
		Subject:      fmt.Sprintf("Report card %d - %s", rc.AcademicYear, studentName),
		TemplateName: "report_card",
		TemplateData: data,
	}
	var buf bytes.Buffer
	if err = rc.WriteCSV(&buf); err != nil {
		return err
	}
	filename := fmt.Sprintf("report-card-%s-%d.csv", sr.StudentID, rc.AcademicYear)
	if err = msg.Attach(&buf, filename, "text/csv"); err != nil {
		return errors.Wrap(err, "attaching report card")
	}

	svc.mailSvc.SendMessages(msg)
	return nil
}
