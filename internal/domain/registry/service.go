package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/codec"
)

// Accounts creates the user behind a new profile.
type Accounts interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.User, error)
	LockRegistration(ctx context.Context) error
	CountUsers(ctx context.Context) (int, error)
}

// Repos groups the registry's storage.
type Repos struct {
	Patients     PatientRepository
	Admins       AdminRepository
	Doctors      ClinicianRepository
	Staff        ClinicianRepository
	Insurances   InsuranceRepository
	Polyclinics  OrgUnitRepository
	Laboratories OrgUnitRepository
	PolyDoctors  MembershipRepository
	LabStaff     MembershipRepository
	Interests    InterestRepository
}

// Service owns the registry entities. Profile creation registers the user
// first; both writes must share the caller's unit of work so that a failed
// profile insert leaves no orphaned account.
type Service struct {
	accounts Accounts
	Repos
}

func NewService(accounts Accounts, repos Repos) *Service {
	return &Service{accounts: accounts, Repos: repos}
}

func (s *Service) register(ctx context.Context, acct Account, name string, role auth.Role) (*identity.User, error) {
	userName := acct.UserName
	if userName == "" {
		userName = name
	}
	return s.accounts.Register(ctx, identity.RegisterInput{
		UserName: userName,
		Email:    acct.Email,
		Password: acct.Password,
		Role:     role,
	})
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	p := req.patient()
	if p.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.checkInsurance(ctx, p.InsuranceID); err != nil {
		return nil, err
	}
	u, err := s.register(ctx, req.Account, p.Name, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	p.UserID = u.ID
	if err := s.Patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.Patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.Patients.List(ctx, limit, offset)
}

// UpdatePatient applies only the fields present in req.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *UpdatePatientRequest) (*Patient, error) {
	p, err := s.Patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.InsuranceID != nil {
		if err := s.checkInsurance(ctx, req.InsuranceID); err != nil {
			return nil, err
		}
	}
	req.apply(p)
	if err := s.Patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PatientOwner returns the user id owning the patient profile.
func (s *Service) PatientOwner(ctx context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	p, err := s.Patients.GetByID(ctx, patientID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.UserID, nil
}

func (s *Service) checkInsurance(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := s.Insurances.GetByID(ctx, *id)
	return err
}

// -- Admin --

func (s *Service) CreateAdmin(ctx context.Context, req *CreateAdminRequest) (*Admin, error) {
	a := req.admin()
	if a.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	u, err := s.register(ctx, req.Account, a.Name, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	a.UserID = u.ID
	if err := s.Admins.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// NeedsBootstrap reports whether no account exists yet, in which case the
// first admin may be created anonymously. The registration lock is held
// until the caller's transaction ends, so two anonymous requests cannot both
// see an empty table.
func (s *Service) NeedsBootstrap(ctx context.Context) (bool, error) {
	if err := s.accounts.LockRegistration(ctx); err != nil {
		return false, err
	}
	n, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *Service) GetAdmin(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return s.Admins.GetByID(ctx, id)
}

func (s *Service) ListAdmins(ctx context.Context, limit, offset int) ([]*Admin, int, error) {
	return s.Admins.List(ctx, limit, offset)
}

func (s *Service) UpdateAdmin(ctx context.Context, id uuid.UUID, req *UpdateAdminRequest) (*Admin, error) {
	a, err := s.Admins.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(a)
	if err := s.Admins.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// -- Doctor / Medical Staff --

func (s *Service) CreateDoctor(ctx context.Context, req *CreateClinicianRequest) (*Clinician, error) {
	return s.createClinician(ctx, s.Doctors, auth.RoleDoctor, req)
}

func (s *Service) CreateStaff(ctx context.Context, req *CreateClinicianRequest) (*Clinician, error) {
	return s.createClinician(ctx, s.Staff, auth.RoleMedicalStaff, req)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return s.Doctors.GetByID(ctx, id)
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	return s.Staff.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	return s.Doctors.List(ctx, limit, offset)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	return s.Staff.List(ctx, limit, offset)
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, req *UpdateClinicianRequest) (*Clinician, error) {
	return s.updateClinician(ctx, s.Doctors, id, req)
}

func (s *Service) UpdateStaff(ctx context.Context, id uuid.UUID, req *UpdateClinicianRequest) (*Clinician, error) {
	return s.updateClinician(ctx, s.Staff, id, req)
}

func (s *Service) createClinician(ctx context.Context, repo ClinicianRepository, role auth.Role, req *CreateClinicianRequest) (*Clinician, error) {
	c := req.clinician()
	if c.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	hist, err := parseHistorical(req.Historical)
	if err != nil {
		return nil, err
	}
	c.Historical = hist
	if c.Historical == nil {
		c.Historical = map[string]any{}
	}

	u, err := s.register(ctx, req.Account, c.Name, role)
	if err != nil {
		return nil, err
	}
	c.UserID = u.ID
	if err := repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) updateClinician(ctx context.Context, repo ClinicianRepository, id uuid.UUID, req *UpdateClinicianRequest) (*Clinician, error) {
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	hist, err := parseHistorical(req.Historical)
	if err != nil {
		return nil, err
	}
	req.apply(c)
	if hist != nil {
		c.Historical = hist
	}
	if err := repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// parseHistorical accepts any JSON object. An absent value yields nil and
// an explicit null yields an empty document.
func parseHistorical(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(string(raw)) == "null" {
		return map[string]any{}, nil
	}
	doc, err := codec.ParseDocument(raw)
	if err != nil {
		return nil, apperr.Validation("historical: %v", err)
	}
	return doc, nil
}

// -- Insurance --

func (s *Service) CreateInsurance(ctx context.Context, name string) (*Insurance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := checkNameFree(s.Insurances.GetByName(ctx, name)); err != nil {
		return nil, err
	}
	i := &Insurance{Name: name}
	if err := s.Insurances.Create(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) GetInsurance(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	return s.Insurances.GetByID(ctx, id)
}

func (s *Service) ListInsurances(ctx context.Context, limit, offset int) ([]*Insurance, int, error) {
	return s.Insurances.List(ctx, limit, offset)
}

func (s *Service) UpdateInsurance(ctx context.Context, id uuid.UUID, name string) (*Insurance, error) {
	i, err := s.Insurances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !strings.EqualFold(name, i.Name) {
		if err := checkNameFree(s.Insurances.GetByName(ctx, name)); err != nil {
			return nil, err
		}
	}
	i.Name = name
	if err := s.Insurances.Update(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

// checkNameFree turns a by-name lookup into the advisory uniqueness check.
func checkNameFree(_ any, err error) error {
	switch {
	case err == nil:
		return apperr.Duplicate("name already exists")
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	default:
		return err
	}
}

// -- Polyclinic / Laboratory --

func (s *Service) CreatePolyclinic(ctx context.Context, req *OrgUnitRequest) (*OrgUnit, error) {
	return createOrgUnit(ctx, s.Polyclinics, req)
}

func (s *Service) CreateLaboratory(ctx context.Context, req *OrgUnitRequest) (*OrgUnit, error) {
	return createOrgUnit(ctx, s.Laboratories, req)
}

func (s *Service) GetPolyclinic(ctx context.Context, id uuid.UUID) (*OrgUnit, error) {
	return s.Polyclinics.GetByID(ctx, id)
}

func (s *Service) GetLaboratory(ctx context.Context, id uuid.UUID) (*OrgUnit, error) {
	return s.Laboratories.GetByID(ctx, id)
}

func (s *Service) ListPolyclinics(ctx context.Context, limit, offset int) ([]*OrgUnit, int, error) {
	return s.Polyclinics.List(ctx, limit, offset)
}

func (s *Service) ListLaboratories(ctx context.Context, limit, offset int) ([]*OrgUnit, int, error) {
	return s.Laboratories.List(ctx, limit, offset)
}

func (s *Service) UpdatePolyclinic(ctx context.Context, id uuid.UUID, req *UpdateOrgUnitRequest) (*OrgUnit, error) {
	return updateOrgUnit(ctx, s.Polyclinics, id, req)
}

func (s *Service) UpdateLaboratory(ctx context.Context, id uuid.UUID, req *UpdateOrgUnitRequest) (*OrgUnit, error) {
	return updateOrgUnit(ctx, s.Laboratories, id, req)
}

func createOrgUnit(ctx context.Context, repo OrgUnitRepository, req *OrgUnitRequest) (*OrgUnit, error) {
	o := &OrgUnit{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if o.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := checkNameFree(repo.GetByName(ctx, o.Name)); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func updateOrgUnit(ctx context.Context, repo OrgUnitRepository, id uuid.UUID, req *UpdateOrgUnitRequest) (*OrgUnit, error) {
	o, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		if !strings.EqualFold(name, o.Name) {
			if err := checkNameFree(repo.GetByName(ctx, name)); err != nil {
				return nil, err
			}
		}
		o.Name = name
	}
	if req.Description != nil {
		o.Description = *req.Description
	}
	if err := repo.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// -- Associations --

func (s *Service) AssignDoctor(ctx context.Context, polyID, doctorID uuid.UUID) (*Membership, error) {
	return assign(ctx, s.Polyclinics, s.Doctors, s.PolyDoctors, polyID, doctorID, "doctor is already assigned to this polyclinic")
}

func (s *Service) UnassignDoctor(ctx context.Context, polyID, doctorID uuid.UUID) error {
	return unassign(ctx, s.PolyDoctors, polyID, doctorID, "polyclinic doctor assignment")
}

func (s *Service) ListPolyclinicDoctors(ctx context.Context, polyID uuid.UUID) ([]*Clinician, error) {
	if _, err := s.Polyclinics.GetByID(ctx, polyID); err != nil {
		return nil, err
	}
	return s.PolyDoctors.ListMembers(ctx, polyID)
}

func (s *Service) AssignStaff(ctx context.Context, labID, staffID uuid.UUID) (*Membership, error) {
	return assign(ctx, s.Laboratories, s.Staff, s.LabStaff, labID, staffID, "staff is already assigned to this laboratory")
}

func (s *Service) UnassignStaff(ctx context.Context, labID, staffID uuid.UUID) error {
	return unassign(ctx, s.LabStaff, labID, staffID, "laboratory staff assignment")
}

func (s *Service) ListLaboratoryStaff(ctx context.Context, labID uuid.UUID) ([]*Clinician, error) {
	if _, err := s.Laboratories.GetByID(ctx, labID); err != nil {
		return nil, err
	}
	return s.LabStaff.ListMembers(ctx, labID)
}

func assign(ctx context.Context, orgs OrgUnitRepository, members ClinicianRepository, links MembershipRepository,
	orgID, memberID uuid.UUID, dupMsg string) (*Membership, error) {
	if _, err := orgs.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	if _, err := members.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	exists, err := links.Exists(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Duplicate(dupMsg)
	}
	m := &Membership{OrgID: orgID, MemberID: memberID}
	if err := links.Add(ctx, m); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, apperr.Duplicate(dupMsg)
		}
		return nil, err
	}
	return m, nil
}

func unassign(ctx context.Context, links MembershipRepository, orgID, memberID uuid.UUID, what string) error {
	removed, err := links.Remove(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(what)
	}
	return nil
}

// -- Patient Interest --

func (s *Service) AssignInterest(ctx context.Context, req *InterestRequest) (*PatientInterest, error) {
	doctorID, staffID := nonNil(req.DoctorID), nonNil(req.StaffID)
	if doctorID == nil && staffID == nil {
		return nil, apperr.Validation("doctor_id or staff_id is required")
	}
	if _, err := s.Patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if doctorID != nil {
		if _, err := s.Doctors.GetByID(ctx, *doctorID); err != nil {
			return nil, err
		}
	}
	if staffID != nil {
		if _, err := s.Staff.GetByID(ctx, *staffID); err != nil {
			return nil, err
		}
	}

	existing, err := s.Interests.Find(ctx, req.PatientID, doctorID, staffID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.Duplicate("patient interest already exists")
	}

	i := &PatientInterest{PatientID: req.PatientID, DoctorID: doctorID, StaffID: staffID}
	if err := s.Interests.Create(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) UnassignInterest(ctx context.Context, req *InterestRequest) error {
	doctorID, staffID := nonNil(req.DoctorID), nonNil(req.StaffID)
	if doctorID == nil && staffID == nil {
		return apperr.Validation("doctor_id or staff_id is required")
	}
	// Each named pair must exist. A miss after a successful unlink is
	// undone by the enclosing transaction.
	if doctorID != nil {
		if err := unlinked(s.Interests.UnlinkDoctor(ctx, req.PatientID, *doctorID)); err != nil {
			return err
		}
	}
	if staffID != nil {
		if err := unlinked(s.Interests.UnlinkStaff(ctx, req.PatientID, *staffID)); err != nil {
			return err
		}
	}
	return nil
}

func unlinked(removed bool, err error) error {
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("patient interest")
	}
	return nil
}

func (s *Service) ListInterests(ctx context.Context, patientID uuid.UUID) ([]*PatientInterest, error) {
	if _, err := s.Patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.Interests.ListByPatient(ctx, patientID)
}

func nonNil(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

// -- Profiles --

// ProfileOf returns the role profile owned by u.
func (s *Service) ProfileOf(ctx context.Context, u *identity.User) (any, error) {
	switch u.Role {
	case auth.RoleAdmin:
		return s.Admins.GetByUserID(ctx, u.ID)
	case auth.RoleDoctor:
		return s.Doctors.GetByUserID(ctx, u.ID)
	case auth.RoleMedicalStaff:
		return s.Staff.GetByUserID(ctx, u.ID)
	case auth.RolePatient:
		return s.Patients.GetByUserID(ctx, u.ID)
	default:
		return nil, apperr.NotFound("profile")
	}
}
