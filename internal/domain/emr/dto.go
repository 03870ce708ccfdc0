package emr

import (
	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/codec"
)

type CreateRecordRequest struct {
	PatientID uuid.UUID `json:"patient_id" form:"patient_id" validate:"required"`
}

// Sub-record requests bind from JSON or multipart forms; a multipart form
// may carry the file in the "attachment" field.

type ClinicalEntryRequest struct {
	RecordID  uuid.UUID  `json:"record_id" form:"record_id" validate:"required"`
	EntryDate codec.Date `json:"entry_date" form:"entry_date" validate:"required"`
	StaffID   *uuid.UUID `json:"staff_id" form:"staff_id"`
	Vitals
}

// Vitals are the optional measurements of a clinical entry.
type Vitals struct {
	Height    *int     `json:"height" form:"height" validate:"omitempty,gt=0,lt=300"`
	Weight    *int     `json:"weight" form:"weight" validate:"omitempty,gt=0,lt=700"`
	BodyTemp  *float64 `json:"body_temp" form:"body_temp" validate:"omitempty,gte=25,lte=45"`
	BloodType *string  `json:"blood_type" form:"blood_type" validate:"omitempty,bloodtype"`
	Systolic  *int     `json:"systolic" form:"systolic" validate:"omitempty,gt=0,lt=400"`
	Diastolic *int     `json:"diastolic" form:"diastolic" validate:"omitempty,gt=0,lt=300"`
	Pulse     *int     `json:"pulse" form:"pulse" validate:"omitempty,gt=0,lt=400"`
	Note      *string  `json:"note" form:"note"`
}

func (v *Vitals) apply(e *ClinicalEntry) {
	if v.Height != nil {
		e.Height = v.Height
	}
	if v.Weight != nil {
		e.Weight = v.Weight
	}
	if v.BodyTemp != nil {
		e.BodyTemp = v.BodyTemp
	}
	if v.BloodType != nil {
		e.BloodType = v.BloodType
	}
	if v.Systolic != nil {
		e.Systolic = v.Systolic
	}
	if v.Diastolic != nil {
		e.Diastolic = v.Diastolic
	}
	if v.Pulse != nil {
		e.Pulse = v.Pulse
	}
	if v.Note != nil {
		e.Note = v.Note
	}
}

// UpdateClinicalEntryRequest is a partial update; nil fields are kept.
type UpdateClinicalEntryRequest struct {
	EntryDate *codec.Date `json:"entry_date" form:"entry_date"`
	StaffID   *uuid.UUID  `json:"staff_id" form:"staff_id"`
	Vitals
}

type MedicalNoteRequest struct {
	RecordID    uuid.UUID  `json:"record_id" form:"record_id" validate:"required"`
	NoteDate    codec.Date `json:"note_date" form:"note_date" validate:"required"`
	NoteContent string     `json:"note_content" form:"note_content" validate:"required"`
	Diagnosis   string     `json:"diagnosis" form:"diagnosis" validate:"required"`
	DoctorID    uuid.UUID  `json:"doctor_id" form:"doctor_id" validate:"required"`
	PolyID      uuid.UUID  `json:"poly_id" form:"poly_id" validate:"required"`
}

type UpdateMedicalNoteRequest struct {
	NoteDate    *codec.Date `json:"note_date" form:"note_date"`
	NoteContent *string     `json:"note_content" form:"note_content" validate:"omitempty,min=1"`
	Diagnosis   *string     `json:"diagnosis" form:"diagnosis" validate:"omitempty,min=1"`
	DoctorID    *uuid.UUID  `json:"doctor_id" form:"doctor_id"`
	PolyID      *uuid.UUID  `json:"poly_id" form:"poly_id"`
}

type LabReportRequest struct {
	RecordID   uuid.UUID  `json:"record_id" form:"record_id" validate:"required"`
	ReportDate codec.Date `json:"report_date" form:"report_date" validate:"required"`
	LabNote    string     `json:"lab_note" form:"lab_note" validate:"required"`
	StaffID    uuid.UUID  `json:"staff_id" form:"staff_id" validate:"required"`
	LabID      uuid.UUID  `json:"lab_id" form:"lab_id" validate:"required"`
}

type UpdateLabReportRequest struct {
	ReportDate *codec.Date `json:"report_date" form:"report_date"`
	LabNote    *string     `json:"lab_note" form:"lab_note" validate:"omitempty,min=1"`
	StaffID    *uuid.UUID  `json:"staff_id" form:"staff_id"`
	LabID      *uuid.UUID  `json:"lab_id" form:"lab_id"`
}
