package emr

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error)
	// Touch sets last_edited on the record.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ClinicalEntryRepository interface {
	Create(ctx context.Context, e *ClinicalEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicalEntry, error)
	Update(ctx context.Context, e *ClinicalEntry) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*ClinicalEntry, error)
}

type MedicalNoteRepository interface {
	Create(ctx context.Context, n *MedicalNote) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalNote, error)
	Update(ctx context.Context, n *MedicalNote) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*MedicalNote, error)
}

type LabReportRepository interface {
	Create(ctx context.Context, r *LabReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error)
	Update(ctx context.Context, r *LabReport) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabReport, error)
}
