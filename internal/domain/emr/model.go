package emr

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/codec"
)

// MedicalRecord is the single record owned by a patient.
type MedicalRecord struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LastEdited time.Time `db:"last_edited" json:"last_edited"`
}

// ClinicalEntry holds vitals and observations taken at one visit. StaffID
// is empty for entries a patient files about themself.
type ClinicalEntry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	RecordID   uuid.UUID  `db:"record_id" json:"record_id"`
	EntryDate  codec.Date `db:"entry_date" json:"entry_date"`
	StaffID    *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	Height     *int       `db:"height" json:"height,omitempty"`
	Weight     *int       `db:"weight" json:"weight,omitempty"`
	BodyTemp   *float64   `db:"body_temp" json:"body_temp,omitempty"`
	BloodType  *string    `db:"blood_type" json:"blood_type,omitempty"`
	Systolic   *int       `db:"systolic" json:"systolic,omitempty"`
	Diastolic  *int       `db:"diastolic" json:"diastolic,omitempty"`
	Pulse      *int       `db:"pulse" json:"pulse,omitempty"`
	Note       *string    `db:"note" json:"note,omitempty"`
	Attachment *string    `db:"attachment" json:"attachment,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

type MedicalNote struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecordID    uuid.UUID  `db:"record_id" json:"record_id"`
	NoteDate    codec.Date `db:"note_date" json:"note_date"`
	NoteContent string     `db:"note_content" json:"note_content"`
	Diagnosis   string     `db:"diagnosis" json:"diagnosis"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PolyID      uuid.UUID  `db:"poly_id" json:"poly_id"`
	Attachment  *string    `db:"attachment" json:"attachment,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type LabReport struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	RecordID   uuid.UUID  `db:"record_id" json:"record_id"`
	ReportDate codec.Date `db:"report_date" json:"report_date"`
	LabNote    string     `db:"lab_note" json:"lab_note"`
	StaffID    uuid.UUID  `db:"staff_id" json:"staff_id"`
	LabID      uuid.UUID  `db:"lab_id" json:"lab_id"`
	Attachment *string    `db:"attachment" json:"attachment,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// RecordDetail is a record with its sub-records, each list oldest first.
type RecordDetail struct {
	*MedicalRecord
	ClinicalEntries []*ClinicalEntry `json:"clinical_entry"`
	MedicalNotes    []*MedicalNote   `json:"medical_note"`
	LabReports      []*LabReport     `json:"lab_report"`
}

// Sub-record kinds, used as metric labels and attachment key prefixes.
const (
	KindClinicalEntry = "clinical_entry"
	KindMedicalNote   = "medical_note"
	KindLabReport     = "lab_report"
)
