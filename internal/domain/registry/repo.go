package registry

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error)
	Update(ctx context.Context, a *Admin) error
	List(ctx context.Context, limit, offset int) ([]*Admin, int, error)
}

// ClinicianRepository is implemented once per clinician table.
type ClinicianRepository interface {
	Create(ctx context.Context, c *Clinician) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Clinician, error)
	Update(ctx context.Context, c *Clinician) error
	List(ctx context.Context, limit, offset int) ([]*Clinician, int, error)
}

type InsuranceRepository interface {
	Create(ctx context.Context, i *Insurance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error)
	GetByName(ctx context.Context, name string) (*Insurance, error)
	Update(ctx context.Context, i *Insurance) error
	List(ctx context.Context, limit, offset int) ([]*Insurance, int, error)
}

// OrgUnitRepository is implemented once per org unit table.
type OrgUnitRepository interface {
	Create(ctx context.Context, o *OrgUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*OrgUnit, error)
	GetByName(ctx context.Context, name string) (*OrgUnit, error)
	Update(ctx context.Context, o *OrgUnit) error
	List(ctx context.Context, limit, offset int) ([]*OrgUnit, int, error)
}

// MembershipRepository stores one association table, e.g. polyclinic
// doctors.
type MembershipRepository interface {
	Add(ctx context.Context, m *Membership) error
	Exists(ctx context.Context, orgID, memberID uuid.UUID) (bool, error)
	// Remove reports whether a link was deleted.
	Remove(ctx context.Context, orgID, memberID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Clinician, error)
}

type InterestRepository interface {
	Create(ctx context.Context, i *PatientInterest) error
	// Find returns interests of the patient that name the doctor or the
	// member of staff.
	Find(ctx context.Context, patientID uuid.UUID, doctorID, staffID *uuid.UUID) ([]*PatientInterest, error)
	// UnlinkDoctor clears the doctor from the patient's interest, dropping
	// the row when no member of staff remains on it. Reports whether the
	// pair existed.
	UnlinkDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	// UnlinkStaff is UnlinkDoctor for the staff side.
	UnlinkStaff(ctx context.Context, patientID, staffID uuid.UUID) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientInterest, error)
}
