package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/codec"
)

// Patient maps to the patients table.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	Name          string     `db:"name" json:"name"`
	DOB           codec.Date `db:"dob" json:"dob"`
	NationalID    string     `db:"national_id" json:"national_id"`
	Sex           string     `db:"sex" json:"sex"`
	PhoneNum      string     `db:"phone_num" json:"phone_num"`
	Address       string     `db:"address" json:"address"`
	Alias         *string    `db:"alias" json:"alias,omitempty"`
	RelativePhone *string    `db:"relative_phone" json:"relative_phone,omitempty"`
	InsuranceID   *uuid.UUID `db:"insurance_id" json:"insurance_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Admin maps to the admins table.
type Admin struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	Name       string     `db:"name" json:"name"`
	DOB        codec.Date `db:"dob" json:"dob"`
	NationalID string     `db:"national_id" json:"national_id"`
	TaxNumber  string     `db:"tax_number" json:"tax_number"`
	Sex        string     `db:"sex" json:"sex"`
	PhoneNum   string     `db:"phone_num" json:"phone_num"`
	Address    string     `db:"address" json:"address"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Clinician is the profile shared by doctors and medical staff. Each kind
// lives in its own table.
type Clinician struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	UserID     uuid.UUID      `db:"user_id" json:"user_id"`
	Name       string         `db:"name" json:"name"`
	DOB        codec.Date     `db:"dob" json:"dob"`
	POB        string         `db:"pob" json:"pob"`
	NationalID string         `db:"national_id" json:"national_id"`
	PhoneNum   string         `db:"phone_num" json:"phone_num"`
	Address    string         `db:"address" json:"address"`
	LicenseNum string         `db:"license_num" json:"license_num"`
	TaxNum     string         `db:"tax_num" json:"tax_num"`
	Sex        string         `db:"sex" json:"sex"`
	Historical map[string]any `db:"historical" json:"historical"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Insurance maps to the insurances table.
type Insurance struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgUnit is a polyclinic or a laboratory.
type OrgUnit struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Membership links an org unit to a clinician: a polyclinic to a doctor or
// a laboratory to a member of staff.
type Membership struct {
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	MemberID  uuid.UUID `db:"member_id" json:"member_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PatientInterest names a doctor and/or member of staff responsible for a
// patient. At least one of the two is set.
type PatientInterest struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	StaffID   *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Kind names a registry entity in messages and metrics.
type Kind string

const (
	KindPatient    Kind = "patient"
	KindAdmin      Kind = "admin"
	KindDoctor     Kind = "doctor"
	KindStaff      Kind = "medical staff"
	KindInsurance  Kind = "insurance"
	KindPolyclinic Kind = "polyclinic"
	KindLaboratory Kind = "laboratory"
)
