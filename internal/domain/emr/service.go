package emr

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/codec"
)

// Patients resolves the user owning a patient profile. It returns a
// NotFound error for unknown patients.
type Patients interface {
	PatientOwner(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error)
}

// Recorder counts created sub-records.
type Recorder interface {
	EntryCreated(kind string)
}

// ReadTx runs fn against one consistent snapshot of the database.
type ReadTx func(ctx context.Context, fn func(ctx context.Context) error) error

func direct(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type nopRecorder struct{}

func (nopRecorder) EntryCreated(string) {}

// Service keeps one record per patient and appends sub-records to it.
// Every sub-record write re-stamps the parent's last_edited.
type Service struct {
	records  RecordRepository
	entries  ClinicalEntryRepository
	notes    MedicalNoteRepository
	reports  LabReportRepository
	patients Patients
	recorder Recorder
	snapshot ReadTx
	now      func() time.Time
}

func NewService(records RecordRepository, entries ClinicalEntryRepository, notes MedicalNoteRepository,
	reports LabReportRepository, patients Patients) *Service {
	return &Service{
		records:  records,
		entries:  entries,
		notes:    notes,
		reports:  reports,
		patients: patients,
		recorder: nopRecorder{},
		snapshot: direct,
		now:      time.Now,
	}
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithSnapshot makes GetRecord read the record and its sub-records inside tx.
func (s *Service) WithSnapshot(tx ReadTx) *Service {
	s.snapshot = tx
	return s
}

// -- Medical Record --

func (s *Service) CreateRecord(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error) {
	if _, err := s.patients.PatientOwner(ctx, patientID); err != nil {
		return nil, err
	}
	_, err := s.records.GetByPatient(ctx, patientID)
	switch {
	case err == nil:
		return nil, apperr.AlreadyExists("medical record already exists for this patient")
	case !errors.Is(err, apperr.ErrRecordNotFound):
		return nil, err
	}

	rec := &MedicalRecord{PatientID: patientID}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecord returns the patient's record with all sub-records, read from
// one snapshot.
func (s *Service) GetRecord(ctx context.Context, patientID uuid.UUID) (*RecordDetail, error) {
	var detail *RecordDetail
	err := s.snapshot(ctx, func(ctx context.Context) error {
		var err error
		detail, err = s.loadRecord(ctx, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) loadRecord(ctx context.Context, patientID uuid.UUID) (*RecordDetail, error) {
	if _, err := s.patients.PatientOwner(ctx, patientID); err != nil {
		return nil, err
	}
	rec, err := s.records.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(entries, func(a, b *ClinicalEntry) int {
		return compareDated(a.EntryDate, a.CreatedAt, b.EntryDate, b.CreatedAt)
	})
	slices.SortStableFunc(notes, func(a, b *MedicalNote) int {
		return compareDated(a.NoteDate, a.CreatedAt, b.NoteDate, b.CreatedAt)
	})
	slices.SortStableFunc(reports, func(a, b *LabReport) int {
		return compareDated(a.ReportDate, a.CreatedAt, b.ReportDate, b.CreatedAt)
	})

	return &RecordDetail{
		MedicalRecord:   rec,
		ClinicalEntries: nonNil(entries),
		MedicalNotes:    nonNil(notes),
		LabReports:      nonNil(reports),
	}, nil
}

// PatientOwner returns the user owning the patient.
func (s *Service) PatientOwner(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	return s.patients.PatientOwner(ctx, patientID)
}

// RecordOwner returns the user owning the patient behind a record.
func (s *Service) RecordOwner(ctx context.Context, recordID uuid.UUID) (uuid.UUID, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.patients.PatientOwner(ctx, rec.PatientID)
}

// ClinicalEntryOwner returns the user owning the record an entry belongs to.
func (s *Service) ClinicalEntryOwner(ctx context.Context, entryID uuid.UUID) (uuid.UUID, error) {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.RecordOwner(ctx, e.RecordID)
}

// touch re-stamps the parent record after a sub-record write.
func (s *Service) touch(ctx context.Context, recordID uuid.UUID) error {
	return s.records.Touch(ctx, recordID, s.now().UTC())
}

// -- Clinical Entry --

// AddClinicalEntry appends an entry to an existing record. attachment is
// the stored key of an uploaded file, or nil.
func (s *Service) AddClinicalEntry(ctx context.Context, req *ClinicalEntryRequest, attachment *string) (*ClinicalEntry, error) {
	if _, err := s.records.GetByID(ctx, req.RecordID); err != nil {
		return nil, err
	}
	e := &ClinicalEntry{
		RecordID:   req.RecordID,
		EntryDate:  req.EntryDate,
		StaffID:    nonNilID(req.StaffID),
		Attachment: attachment,
	}
	req.Vitals.apply(e)
	if err := s.entries.Create(ctx, e); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, e.RecordID); err != nil {
		return nil, err
	}
	s.recorder.EntryCreated(KindClinicalEntry)
	return e, nil
}

func (s *Service) UpdateClinicalEntry(ctx context.Context, id uuid.UUID, req *UpdateClinicalEntryRequest, attachment *string) (*ClinicalEntry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EntryDate != nil {
		if req.EntryDate.IsZero() {
			return nil, apperr.Validation("entry_date must not be empty")
		}
		e.EntryDate = *req.EntryDate
	}
	if req.StaffID != nil {
		e.StaffID = nonNilID(req.StaffID)
	}
	req.Vitals.apply(e)
	if attachment != nil {
		e.Attachment = attachment
	}
	if err := s.entries.Update(ctx, e); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, e.RecordID); err != nil {
		return nil, err
	}
	return e, nil
}

// -- Medical Note --

func (s *Service) AddMedicalNote(ctx context.Context, req *MedicalNoteRequest, attachment *string) (*MedicalNote, error) {
	if _, err := s.records.GetByID(ctx, req.RecordID); err != nil {
		return nil, err
	}
	n := &MedicalNote{
		RecordID:    req.RecordID,
		NoteDate:    req.NoteDate,
		NoteContent: req.NoteContent,
		Diagnosis:   req.Diagnosis,
		DoctorID:    req.DoctorID,
		PolyID:      req.PolyID,
		Attachment:  attachment,
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, n.RecordID); err != nil {
		return nil, err
	}
	s.recorder.EntryCreated(KindMedicalNote)
	return n, nil
}

func (s *Service) UpdateMedicalNote(ctx context.Context, id uuid.UUID, req *UpdateMedicalNoteRequest, attachment *string) (*MedicalNote, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.NoteDate != nil {
		if req.NoteDate.IsZero() {
			return nil, apperr.Validation("note_date must not be empty")
		}
		n.NoteDate = *req.NoteDate
	}
	if req.NoteContent != nil {
		n.NoteContent = *req.NoteContent
	}
	if req.Diagnosis != nil {
		n.Diagnosis = *req.Diagnosis
	}
	if id := nonNilID(req.DoctorID); id != nil {
		n.DoctorID = *id
	}
	if id := nonNilID(req.PolyID); id != nil {
		n.PolyID = *id
	}
	if attachment != nil {
		n.Attachment = attachment
	}
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, n.RecordID); err != nil {
		return nil, err
	}
	return n, nil
}

// -- Lab Report --

func (s *Service) AddLabReport(ctx context.Context, req *LabReportRequest, attachment *string) (*LabReport, error) {
	if _, err := s.records.GetByID(ctx, req.RecordID); err != nil {
		return nil, err
	}
	r := &LabReport{
		RecordID:   req.RecordID,
		ReportDate: req.ReportDate,
		LabNote:    req.LabNote,
		StaffID:    req.StaffID,
		LabID:      req.LabID,
		Attachment: attachment,
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, r.RecordID); err != nil {
		return nil, err
	}
	s.recorder.EntryCreated(KindLabReport)
	return r, nil
}

func (s *Service) UpdateLabReport(ctx context.Context, id uuid.UUID, req *UpdateLabReportRequest, attachment *string) (*LabReport, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ReportDate != nil {
		if req.ReportDate.IsZero() {
			return nil, apperr.Validation("report_date must not be empty")
		}
		r.ReportDate = *req.ReportDate
	}
	if req.LabNote != nil {
		r.LabNote = *req.LabNote
	}
	if id := nonNilID(req.StaffID); id != nil {
		r.StaffID = *id
	}
	if id := nonNilID(req.LabID); id != nil {
		r.LabID = *id
	}
	if attachment != nil {
		r.Attachment = attachment
	}
	if err := s.reports.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := s.touch(ctx, r.RecordID); err != nil {
		return nil, err
	}
	return r, nil
}

// -- helpers --

// compareDated orders by date, then by creation time.
func compareDated(aDate codec.Date, aCreated time.Time, bDate codec.Date, bCreated time.Time) int {
	if c := aDate.Compare(bDate.Time); c != 0 {
		return c
	}
	return aCreated.Compare(bCreated)
}

func nonNil[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}

func nonNilID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
