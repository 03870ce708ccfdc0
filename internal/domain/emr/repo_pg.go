package emr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type pgBase struct {
	pool *pgxpool.Pool
}

func (r *pgBase) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// -- Medical Record Repository --

type recordRepoPG struct{ pgBase }

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pgBase{pool: pool}}
}

const recordCols = `id, patient_id, created_at, last_edited`

func (r *recordRepoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id)
		VALUES ($1, $2)
		RETURNING created_at, last_edited`,
		rec.ID, rec.PatientID,
	).Scan(&rec.CreatedAt, &rec.LastEdited)
	if db.IsUniqueViolation(err) {
		return apperr.AlreadyExists("medical record already exists for this patient")
	}
	return db.Classify(err, "patient")
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return r.get(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id)
}

func (r *recordRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error) {
	return r.get(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1`, patientID)
}

func (r *recordRepoPG) get(ctx context.Context, sql string, arg uuid.UUID) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := r.conn(ctx).QueryRow(ctx, sql, arg).Scan(&rec.ID, &rec.PatientID, &rec.CreatedAt, &rec.LastEdited)
	if db.IsNoRows(err) {
		return nil, apperr.RecordNotFound()
	}
	if err != nil {
		return nil, db.Classify(err, "medical record")
	}
	return &rec, nil
}

func (r *recordRepoPG) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE medical_records SET last_edited = $2 WHERE id = $1`, id, at)
	if err != nil {
		return db.Classify(err, "medical record")
	}
	if tag.RowsAffected() == 0 {
		return apperr.RecordNotFound()
	}
	return nil
}

// -- Clinical Entry Repository --

type clinicalEntryRepoPG struct{ pgBase }

func NewClinicalEntryRepo(pool *pgxpool.Pool) ClinicalEntryRepository {
	return &clinicalEntryRepoPG{pgBase{pool: pool}}
}

const entryCols = `id, record_id, entry_date, staff_id, height, weight, body_temp, blood_type,
	systolic, diastolic, pulse, note, attachment, created_at`

func (r *clinicalEntryRepoPG) Create(ctx context.Context, e *ClinicalEntry) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_entries (id, record_id, entry_date, staff_id, height, weight, body_temp,
			blood_type, systolic, diastolic, pulse, note, attachment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		e.ID, e.RecordID, e.EntryDate.Time, e.StaffID, e.Height, e.Weight, e.BodyTemp,
		e.BloodType, e.Systolic, e.Diastolic, e.Pulse, e.Note, e.Attachment,
	).Scan(&e.CreatedAt)
	return db.Classify(err, "clinical entry")
}

func (r *clinicalEntryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalEntry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM clinical_entries WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "clinical entry")
	}
	return e, nil
}

func (r *clinicalEntryRepoPG) Update(ctx context.Context, e *ClinicalEntry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_entries SET
			entry_date=$2, staff_id=$3, height=$4, weight=$5, body_temp=$6, blood_type=$7,
			systolic=$8, diastolic=$9, pulse=$10, note=$11, attachment=$12
		WHERE id = $1`,
		e.ID, e.EntryDate.Time, e.StaffID, e.Height, e.Weight, e.BodyTemp, e.BloodType,
		e.Systolic, e.Diastolic, e.Pulse, e.Note, e.Attachment,
	)
	return affected(tag, err, "clinical entry")
}

func (r *clinicalEntryRepoPG) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*ClinicalEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+entryCols+` FROM clinical_entries
		WHERE record_id = $1 ORDER BY entry_date, created_at`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list clinical entries: %w", err)
	}
	return collect(rows, scanEntry)
}

func scanEntry(row pgx.Row) (*ClinicalEntry, error) {
	var e ClinicalEntry
	err := row.Scan(&e.ID, &e.RecordID, &e.EntryDate.Time, &e.StaffID, &e.Height, &e.Weight, &e.BodyTemp,
		&e.BloodType, &e.Systolic, &e.Diastolic, &e.Pulse, &e.Note, &e.Attachment, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// -- Medical Note Repository --

type medicalNoteRepoPG struct{ pgBase }

func NewMedicalNoteRepo(pool *pgxpool.Pool) MedicalNoteRepository {
	return &medicalNoteRepoPG{pgBase{pool: pool}}
}

const noteCols = `id, record_id, note_date, note_content, diagnosis, doctor_id, poly_id, attachment, created_at`

func (r *medicalNoteRepoPG) Create(ctx context.Context, n *MedicalNote) error {
	n.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_notes (id, record_id, note_date, note_content, diagnosis, doctor_id, poly_id, attachment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		n.ID, n.RecordID, n.NoteDate.Time, n.NoteContent, n.Diagnosis, n.DoctorID, n.PolyID, n.Attachment,
	).Scan(&n.CreatedAt)
	return db.Classify(err, "medical note")
}

func (r *medicalNoteRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalNote, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx, `SELECT `+noteCols+` FROM medical_notes WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "medical note")
	}
	return n, nil
}

func (r *medicalNoteRepoPG) Update(ctx context.Context, n *MedicalNote) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_notes SET
			note_date=$2, note_content=$3, diagnosis=$4, doctor_id=$5, poly_id=$6, attachment=$7
		WHERE id = $1`,
		n.ID, n.NoteDate.Time, n.NoteContent, n.Diagnosis, n.DoctorID, n.PolyID, n.Attachment,
	)
	return affected(tag, err, "medical note")
}

func (r *medicalNoteRepoPG) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*MedicalNote, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+noteCols+` FROM medical_notes
		WHERE record_id = $1 ORDER BY note_date, created_at`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list medical notes: %w", err)
	}
	return collect(rows, scanNote)
}

func scanNote(row pgx.Row) (*MedicalNote, error) {
	var n MedicalNote
	err := row.Scan(&n.ID, &n.RecordID, &n.NoteDate.Time, &n.NoteContent, &n.Diagnosis,
		&n.DoctorID, &n.PolyID, &n.Attachment, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// -- Lab Report Repository --

type labReportRepoPG struct{ pgBase }

func NewLabReportRepo(pool *pgxpool.Pool) LabReportRepository {
	return &labReportRepoPG{pgBase{pool: pool}}
}

const reportCols = `id, record_id, report_date, lab_note, staff_id, lab_id, attachment, created_at`

func (r *labReportRepoPG) Create(ctx context.Context, lr *LabReport) error {
	lr.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_reports (id, record_id, report_date, lab_note, staff_id, lab_id, attachment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		lr.ID, lr.RecordID, lr.ReportDate.Time, lr.LabNote, lr.StaffID, lr.LabID, lr.Attachment,
	).Scan(&lr.CreatedAt)
	return db.Classify(err, "lab report")
}

func (r *labReportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error) {
	lr, err := scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM lab_reports WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "lab report")
	}
	return lr, nil
}

func (r *labReportRepoPG) Update(ctx context.Context, lr *LabReport) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_reports SET
			report_date=$2, lab_note=$3, staff_id=$4, lab_id=$5, attachment=$6
		WHERE id = $1`,
		lr.ID, lr.ReportDate.Time, lr.LabNote, lr.StaffID, lr.LabID, lr.Attachment,
	)
	return affected(tag, err, "lab report")
}

func (r *labReportRepoPG) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabReport, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reportCols+` FROM lab_reports
		WHERE record_id = $1 ORDER BY report_date, created_at`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list lab reports: %w", err)
	}
	return collect(rows, scanReport)
}

func scanReport(row pgx.Row) (*LabReport, error) {
	var lr LabReport
	err := row.Scan(&lr.ID, &lr.RecordID, &lr.ReportDate.Time, &lr.LabNote, &lr.StaffID, &lr.LabID,
		&lr.Attachment, &lr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

// -- helpers --

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func affected(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return db.Classify(err, what)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(what)
	}
	return nil
}

