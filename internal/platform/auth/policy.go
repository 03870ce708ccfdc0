package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
)

// Action names an operation gated by the policy.
type Action string

const (
	ActionUserCreate        Action = "user.create"
	ActionUserList          Action = "user.list"
	ActionAdminRead         Action = "admin.read"
	ActionAdminUpdate       Action = "admin.update"
	ActionPatientCreate     Action = "patient.create"
	ActionPatientList       Action = "patient.list"
	ActionPatientRead       Action = "patient.read"
	ActionPatientUpdate     Action = "patient.update"
	ActionDoctorCreate      Action = "doctor.create"
	ActionDoctorRead        Action = "doctor.read"
	ActionDoctorUpdate      Action = "doctor.update"
	ActionStaffCreate       Action = "staff.create"
	ActionStaffRead         Action = "staff.read"
	ActionStaffUpdate       Action = "staff.update"
	ActionInsuranceWrite    Action = "insurance.write"
	ActionInsuranceRead     Action = "insurance.read"
	ActionOrgWrite          Action = "org.write"
	ActionOrgRead           Action = "org.read"
	ActionAssociationManage Action = "association.manage"
	ActionInterestManage    Action = "interest.manage"
	ActionInterestRead      Action = "interest.read"
	ActionRecordCreate      Action = "record.create"
	ActionRecordRead        Action = "record.read"
	ActionClinicalEntry     Action = "clinical_entry.write"
	ActionMedicalNote       Action = "medical_note.write"
	ActionLabReport         Action = "lab_report.write"
	ActionAttachmentRead    Action = "attachment.read"
)

// ReasonForbidden is the only deny reason.
const ReasonForbidden = "Forbidden"

type rule struct {
	roles []Role
	owner bool
}

var (
	allRoles = []Role{RoleAdmin, RoleDoctor, RoleMedicalStaff, RolePatient}
	clinical = []Role{RoleAdmin, RoleDoctor, RoleMedicalStaff}
)

var rules = map[Action]rule{
	ActionUserCreate:        {roles: []Role{RoleAdmin}},
	ActionUserList:          {roles: []Role{RoleAdmin}},
	ActionAdminRead:         {roles: []Role{RoleAdmin}, owner: true},
	ActionAdminUpdate:       {roles: []Role{RoleAdmin}, owner: true},
	ActionPatientCreate:     {roles: []Role{RoleAdmin, RoleDoctor}},
	ActionPatientList:       {roles: clinical},
	ActionPatientRead:       {roles: clinical, owner: true},
	ActionPatientUpdate:     {roles: []Role{RoleAdmin, RoleDoctor}, owner: true},
	ActionDoctorCreate:      {roles: []Role{RoleAdmin}},
	ActionDoctorRead:        {roles: clinical},
	ActionDoctorUpdate:      {roles: []Role{RoleAdmin}, owner: true},
	ActionStaffCreate:       {roles: []Role{RoleAdmin}},
	ActionStaffRead:         {roles: clinical},
	ActionStaffUpdate:       {roles: []Role{RoleAdmin}, owner: true},
	ActionInsuranceWrite:    {roles: []Role{RoleAdmin}},
	ActionInsuranceRead:     {roles: allRoles},
	ActionOrgWrite:          {roles: []Role{RoleAdmin}},
	ActionOrgRead:           {roles: allRoles},
	ActionAssociationManage: {roles: []Role{RoleAdmin}},
	ActionInterestManage:    {roles: clinical},
	ActionInterestRead:      {roles: clinical, owner: true},
	ActionRecordCreate:      {roles: clinical},
	ActionRecordRead:        {roles: clinical, owner: true},
	ActionClinicalEntry:     {roles: clinical, owner: true},
	ActionMedicalNote:       {roles: []Role{RoleAdmin, RoleDoctor}},
	ActionLabReport:         {roles: []Role{RoleAdmin, RoleMedicalStaff}},
	ActionAttachmentRead:    {roles: clinical},
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

var (
	allow = Decision{Allowed: true}
	deny  = Decision{Reason: ReasonForbidden}
)

// Authorize decides whether id may perform action. ownerID is the user id
// owning the target resource; when supplied and the action admits owners,
// a matching caller is allowed regardless of role. Unknown actions are
// denied.
func Authorize(id Identity, action Action, ownerID ...uuid.UUID) Decision {
	r, ok := rules[action]
	if !ok || !id.Role.Valid() {
		return deny
	}
	for _, role := range r.roles {
		if role == id.Role {
			return allow
		}
	}
	if r.owner && id.UserID != uuid.Nil {
		for _, o := range ownerID {
			if o == id.UserID {
				return allow
			}
		}
	}
	return deny
}

// RolesFor lists the roles an action admits without an ownership match.
func RolesFor(action Action) []Role {
	r := rules[action]
	out := make([]Role, len(r.roles))
	copy(out, r.roles)
	return out
}

// Check evaluates the policy against the identity stored in ctx and returns
// an application error on denial.
func Check(ctx context.Context, action Action, ownerID ...uuid.UUID) error {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return apperr.Unauthorized("authentication required")
	}
	if d := Authorize(id, action, ownerID...); !d.Allowed {
		return apperr.Forbidden()
	}
	return nil
}

// CheckResource is Check for an owned resource that had to be looked up
// first. lookupErr is the lookup's error: a caller who could not see the
// resource anyway gets Forbidden instead of NotFound, so denial does not
// reveal whether it exists.
func CheckResource(ctx context.Context, action Action, lookupErr error, ownerID uuid.UUID) error {
	if lookupErr == nil {
		return Check(ctx, action, ownerID)
	}
	if !errors.Is(lookupErr, apperr.ErrNotFound) && !errors.Is(lookupErr, apperr.ErrRecordNotFound) {
		return lookupErr
	}
	if err := Check(ctx, action); err != nil {
		return err
	}
	return lookupErr
}
