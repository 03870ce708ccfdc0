package registry

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/codec"
)

// Account is the credential part of a profile creation request.
type Account struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
	UserName string `json:"user_name" form:"user_name" validate:"omitempty,max=100"`
}

type CreatePatientRequest struct {
	Account
	Name          string     `json:"name" form:"name" validate:"required,max=200"`
	DOB           codec.Date `json:"dob" form:"dob" validate:"required"`
	NationalID    string     `json:"national_id" form:"national_id" validate:"required,max=50"`
	Sex           string     `json:"sex" form:"sex" validate:"required,max=10"`
	PhoneNum      string     `json:"phone_num" form:"phone_num" validate:"required,max=30"`
	Address       string     `json:"address" form:"address" validate:"required"`
	Alias         *string    `json:"alias" form:"alias" validate:"omitempty,max=100"`
	RelativePhone *string    `json:"relative_phone" form:"relative_phone" validate:"omitempty,max=30"`
	InsuranceID   *uuid.UUID `json:"insurance_id" form:"insurance_id"`
}

func (r *CreatePatientRequest) patient() *Patient {
	return &Patient{
		Name:          strings.TrimSpace(r.Name),
		DOB:           r.DOB,
		NationalID:    r.NationalID,
		Sex:           r.Sex,
		PhoneNum:      r.PhoneNum,
		Address:       r.Address,
		Alias:         r.Alias,
		RelativePhone: r.RelativePhone,
		InsuranceID:   r.InsuranceID,
	}
}

// UpdatePatientRequest holds a partial update; nil fields are left alone.
type UpdatePatientRequest struct {
	Name          *string     `json:"name" validate:"omitempty,min=1,max=200"`
	DOB           *codec.Date `json:"dob"`
	NationalID    *string     `json:"national_id" validate:"omitempty,min=1,max=50"`
	Sex           *string     `json:"sex" validate:"omitempty,min=1,max=10"`
	PhoneNum      *string     `json:"phone_num" validate:"omitempty,min=1,max=30"`
	Address       *string     `json:"address" validate:"omitempty,min=1"`
	Alias         *string     `json:"alias" validate:"omitempty,max=100"`
	RelativePhone *string     `json:"relative_phone" validate:"omitempty,max=30"`
	InsuranceID   *uuid.UUID  `json:"insurance_id"`
}

func (r *UpdatePatientRequest) apply(p *Patient) {
	setString(&p.Name, r.Name)
	if r.DOB != nil {
		p.DOB = *r.DOB
	}
	setString(&p.NationalID, r.NationalID)
	setString(&p.Sex, r.Sex)
	setString(&p.PhoneNum, r.PhoneNum)
	setString(&p.Address, r.Address)
	if r.Alias != nil {
		p.Alias = r.Alias
	}
	if r.RelativePhone != nil {
		p.RelativePhone = r.RelativePhone
	}
	if r.InsuranceID != nil {
		p.InsuranceID = r.InsuranceID
	}
}

type CreateAdminRequest struct {
	Account
	Name       string     `json:"name" form:"name" validate:"required,max=200"`
	DOB        codec.Date `json:"dob" form:"dob" validate:"required"`
	NationalID string     `json:"national_id" form:"national_id" validate:"required,max=50"`
	TaxNumber  string     `json:"tax_number" form:"tax_number" validate:"max=50"`
	Sex        string     `json:"sex" form:"sex" validate:"required,max=10"`
	PhoneNum   string     `json:"phone_num" form:"phone_num" validate:"required,max=30"`
	Address    string     `json:"address" form:"address" validate:"required"`
}

func (r *CreateAdminRequest) admin() *Admin {
	return &Admin{
		Name:       strings.TrimSpace(r.Name),
		DOB:        r.DOB,
		NationalID: r.NationalID,
		TaxNumber:  r.TaxNumber,
		Sex:        r.Sex,
		PhoneNum:   r.PhoneNum,
		Address:    r.Address,
	}
}

type UpdateAdminRequest struct {
	Name       *string     `json:"name" validate:"omitempty,min=1,max=200"`
	DOB        *codec.Date `json:"dob"`
	NationalID *string     `json:"national_id" validate:"omitempty,min=1,max=50"`
	TaxNumber  *string     `json:"tax_number" validate:"omitempty,max=50"`
	Sex        *string     `json:"sex" validate:"omitempty,min=1,max=10"`
	PhoneNum   *string     `json:"phone_num" validate:"omitempty,min=1,max=30"`
	Address    *string     `json:"address" validate:"omitempty,min=1"`
}

func (r *UpdateAdminRequest) apply(a *Admin) {
	setString(&a.Name, r.Name)
	if r.DOB != nil {
		a.DOB = *r.DOB
	}
	setString(&a.NationalID, r.NationalID)
	setString(&a.TaxNumber, r.TaxNumber)
	setString(&a.Sex, r.Sex)
	setString(&a.PhoneNum, r.PhoneNum)
	setString(&a.Address, r.Address)
}

// CreateClinicianRequest registers a doctor or a member of medical staff.
type CreateClinicianRequest struct {
	Account
	Name       string          `json:"name" validate:"required,max=200"`
	DOB        codec.Date      `json:"dob" validate:"required"`
	POB        string          `json:"pob" validate:"max=100"`
	NationalID string          `json:"national_id" validate:"required,max=50"`
	PhoneNum   string          `json:"phone_num" validate:"required,max=30"`
	Address    string          `json:"address" validate:"required"`
	LicenseNum string          `json:"license_num" validate:"required,max=50"`
	TaxNum     string          `json:"tax_num" validate:"max=50"`
	Sex        string          `json:"sex" validate:"required,max=10"`
	Historical json.RawMessage `json:"historical"`
}

func (r *CreateClinicianRequest) clinician() *Clinician {
	return &Clinician{
		Name:       strings.TrimSpace(r.Name),
		DOB:        r.DOB,
		POB:        r.POB,
		NationalID: r.NationalID,
		PhoneNum:   r.PhoneNum,
		Address:    r.Address,
		LicenseNum: r.LicenseNum,
		TaxNum:     r.TaxNum,
		Sex:        r.Sex,
	}
}

type UpdateClinicianRequest struct {
	Name       *string         `json:"name" validate:"omitempty,min=1,max=200"`
	DOB        *codec.Date     `json:"dob"`
	POB        *string         `json:"pob" validate:"omitempty,max=100"`
	NationalID *string         `json:"national_id" validate:"omitempty,min=1,max=50"`
	PhoneNum   *string         `json:"phone_num" validate:"omitempty,min=1,max=30"`
	Address    *string         `json:"address" validate:"omitempty,min=1"`
	LicenseNum *string         `json:"license_num" validate:"omitempty,min=1,max=50"`
	TaxNum     *string         `json:"tax_num" validate:"omitempty,max=50"`
	Sex        *string         `json:"sex" validate:"omitempty,min=1,max=10"`
	Historical json.RawMessage `json:"historical"`
}

func (r *UpdateClinicianRequest) apply(c *Clinician) {
	setString(&c.Name, r.Name)
	if r.DOB != nil {
		c.DOB = *r.DOB
	}
	setString(&c.POB, r.POB)
	setString(&c.NationalID, r.NationalID)
	setString(&c.PhoneNum, r.PhoneNum)
	setString(&c.Address, r.Address)
	setString(&c.LicenseNum, r.LicenseNum)
	setString(&c.TaxNum, r.TaxNum)
	setString(&c.Sex, r.Sex)
}

type InsuranceRequest struct {
	Name string `json:"name" form:"name" validate:"required,max=200"`
}

type OrgUnitRequest struct {
	Name        string `json:"name" form:"name" validate:"required,max=200"`
	Description string `json:"description" form:"description"`
}

type UpdateOrgUnitRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

type PolyDoctorRequest struct {
	PolyID   uuid.UUID `json:"poly_id" form:"poly_id" validate:"required"`
	DoctorID uuid.UUID `json:"doctor_id" form:"doctor_id" validate:"required"`
}

type LabStaffRequest struct {
	LabID   uuid.UUID `json:"lab_id" form:"lab_id" validate:"required"`
	StaffID uuid.UUID `json:"staff_id" form:"staff_id" validate:"required"`
}

type InterestRequest struct {
	PatientID uuid.UUID  `json:"patient_id" form:"patient_id" validate:"required"`
	DoctorID  *uuid.UUID `json:"doctor_id" form:"doctor_id" validate:"required_without=StaffID"`
	StaffID   *uuid.UUID `json:"staff_id" form:"staff_id" validate:"required_without=DoctorID"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
