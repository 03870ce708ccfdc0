package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
)

func TestAuthorize_DoctorRegistration(t *testing.T) {
	admin := Identity{UserID: uuid.New(), Role: RoleAdmin}
	patient := Identity{UserID: uuid.New(), Role: RolePatient}

	if d := Authorize(admin, ActionDoctorCreate); !d.Allowed {
		t.Error("expected admin to register doctors")
	}
	d := Authorize(patient, ActionDoctorCreate)
	if d.Allowed {
		t.Fatal("expected patient to be denied")
	}
	if d.Reason != ReasonForbidden {
		t.Errorf("expected reason Forbidden, got %q", d.Reason)
	}
}

func TestAuthorize_OwnerOverride(t *testing.T) {
	patient := Identity{UserID: uuid.New(), Role: RolePatient}
	other := uuid.New()

	if !Authorize(patient, ActionRecordRead, patient.UserID).Allowed {
		t.Error("expected patient to read own record")
	}
	if Authorize(patient, ActionRecordRead, other).Allowed {
		t.Error("expected patient to be denied another patient's record")
	}
	if Authorize(patient, ActionRecordRead).Allowed {
		t.Error("expected denial without an owner")
	}
	if !Authorize(patient, ActionClinicalEntry, patient.UserID).Allowed {
		t.Error("expected self-service clinical entry")
	}
}

func TestAuthorize_OwnerIgnoredForRoleOnlyActions(t *testing.T) {
	doctor := Identity{UserID: uuid.New(), Role: RoleDoctor}
	if Authorize(doctor, ActionAssociationManage, doctor.UserID).Allowed {
		t.Error("ownership must not grant role-only actions")
	}
}

func TestAuthorize_UnknownActionOrRole(t *testing.T) {
	admin := Identity{UserID: uuid.New(), Role: RoleAdmin}
	if Authorize(admin, Action("does.not.exist")).Allowed {
		t.Error("expected unknown action to be denied")
	}
	if Authorize(Identity{UserID: uuid.New(), Role: Role(9)}, ActionOrgRead).Allowed {
		t.Error("expected invalid role to be denied")
	}
}

func TestAuthorize_Matrix(t *testing.T) {
	cases := []struct {
		action Action
		role   Role
		want   bool
	}{
		{ActionPatientCreate, RoleDoctor, true},
		{ActionPatientCreate, RoleMedicalStaff, false},
		{ActionMedicalNote, RoleDoctor, true},
		{ActionMedicalNote, RoleMedicalStaff, false},
		{ActionLabReport, RoleMedicalStaff, true},
		{ActionLabReport, RoleDoctor, false},
		{ActionOrgRead, RolePatient, true},
		{ActionOrgWrite, RoleDoctor, false},
		{ActionUserList, RoleAdmin, true},
		{ActionRecordCreate, RolePatient, false},
	}
	for _, tc := range cases {
		got := Authorize(Identity{UserID: uuid.New(), Role: tc.role}, tc.action).Allowed
		if got != tc.want {
			t.Errorf("Authorize(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(context.Background(), ActionOrgRead); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized without identity, got %v", err)
	}

	ctx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RolePatient})
	if err := Check(ctx, ActionDoctorCreate); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := Check(ctx, ActionOrgRead); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{"1": RoleAdmin, "doctor": RoleDoctor, "3": RoleMedicalStaff, "Patient": RolePatient}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRole("5"); err == nil {
		t.Error("expected error for role 5")
	}
	if _, err := ParseRole("nurse"); err == nil {
		t.Error("expected error for unknown name")
	}
}

func TestCheckResource(t *testing.T) {
	owner := uuid.New()
	patientCtx := WithIdentity(context.Background(), Identity{UserID: owner, Role: RolePatient})
	otherPatientCtx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RolePatient})
	doctorCtx := WithIdentity(context.Background(), Identity{UserID: uuid.New(), Role: RoleDoctor})

	if err := CheckResource(patientCtx, ActionRecordRead, nil, owner); err != nil {
		t.Errorf("expected owner to read, got %v", err)
	}
	if err := CheckResource(otherPatientCtx, ActionRecordRead, nil, owner); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for other patient, got %v", err)
	}

	missing := apperr.RecordNotFound()
	if err := CheckResource(doctorCtx, ActionRecordRead, missing, uuid.Nil); !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("expected record not found for doctor, got %v", err)
	}
	if err := CheckResource(otherPatientCtx, ActionRecordRead, missing, uuid.Nil); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected missing record to be hidden behind forbidden, got %v", err)
	}

	internal := apperr.Internal(errors.New("boom"))
	if err := CheckResource(doctorCtx, ActionRecordRead, internal, uuid.Nil); !errors.Is(err, apperr.ErrInternal) {
		t.Errorf("expected internal error to pass through, got %v", err)
	}
}
