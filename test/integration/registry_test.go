//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/domain/registry"
	"github.com/ehr/hospital/internal/platform/apperr"
)

func TestPatientCRUD(t *testing.T) {
	ctx := context.Background()
	svcs := newServices()

	var insuranceID uuid.UUID
	err := inTx(ctx, func(ctx context.Context) error {
		ins, err := svcs.registry.CreateInsurance(ctx, uniqueName("Insurer"))
		if err != nil {
			return err
		}
		insuranceID = ins.ID
		return nil
	})
	if err != nil {
		t.Fatalf("create insurance: %v", err)
	}

	email := uniqueEmail("crud")
	var patientID uuid.UUID

	t.Run("Create", func(t *testing.T) {
		req := patientRequest(email)
		req.InsuranceID = &insuranceID
		req.Alias = ptrStr("Tess")
		err := inTx(ctx, func(ctx context.Context) error {
			p, err := svcs.registry.CreatePatient(ctx, req)
			if err != nil {
				return err
			}
			patientID = p.ID
			return nil
		})
		if err != nil {
			t.Fatalf("CreatePatient: %v", err)
		}
		if patientID == uuid.Nil {
			t.Fatal("expected non-nil ID after create")
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		p, err := svcs.registry.GetPatient(ctx, patientID)
		if err != nil {
			t.Fatalf("GetPatient: %v", err)
		}
		if p.Name != "Test Patient" || p.DOB.String() != "1990-04-12" {
			t.Errorf("unexpected patient: %+v", p)
		}
		if p.InsuranceID == nil || *p.InsuranceID != insuranceID {
			t.Errorf("insurance = %v, want %s", p.InsuranceID, insuranceID)
		}
		if p.Alias == nil || *p.Alias != "Tess" {
			t.Errorf("alias = %v", p.Alias)
		}
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		err := inTx(ctx, func(ctx context.Context) error {
			_, err := svcs.registry.UpdatePatient(ctx, patientID, &registry.UpdatePatientRequest{
				PhoneNum: ptrStr("555-0199"),
			})
			return err
		})
		if err != nil {
			t.Fatalf("UpdatePatient: %v", err)
		}
		p, err := svcs.registry.GetPatient(ctx, patientID)
		if err != nil {
			t.Fatalf("GetPatient: %v", err)
		}
		if p.PhoneNum != "555-0199" {
			t.Errorf("phone = %q", p.PhoneNum)
		}
		if p.Name != "Test Patient" || p.Address != "1 Test Way" {
			t.Errorf("untouched fields changed: %+v", p)
		}
	})

	t.Run("DuplicateEmailCaseInsensitive", func(t *testing.T) {
		err := inTx(ctx, func(ctx context.Context) error {
			_, err := svcs.registry.CreatePatient(ctx, patientRequest(strings.ToUpper(email)))
			return err
		})
		if apperr.KindOf(err) != apperr.KindDuplicate {
			t.Fatalf("expected duplicate, got %v", err)
		}
	})

	t.Run("UnknownInsurance", func(t *testing.T) {
		missing := uuid.New()
		err := inTx(ctx, func(ctx context.Context) error {
			req := patientRequest(uniqueEmail("noins"))
			req.InsuranceID = &missing
			_, err := svcs.registry.CreatePatient(ctx, req)
			return err
		})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("ListIncludesPatient", func(t *testing.T) {
		items, total, err := svcs.registry.ListPatients(ctx, 1000, 0)
		if err != nil {
			t.Fatalf("ListPatients: %v", err)
		}
		if total < 1 {
			t.Fatalf("total = %d", total)
		}
		found := false
		for _, p := range items {
			if p.ID == patientID {
				found = true
			}
		}
		if !found {
			t.Error("created patient not listed")
		}
	})
}

func TestCreatePatient_RollbackLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	svcs := newServices()
	email := uniqueEmail("rollback")

	abort := errors.New("abort")
	err := inTx(ctx, func(ctx context.Context) error {
		if _, err := svcs.registry.CreatePatient(ctx, patientRequest(email)); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort, got %v", err)
	}

	// The account must have been rolled back with the profile.
	err = inTx(ctx, func(ctx context.Context) error {
		_, err := svcs.registry.CreatePatient(ctx, patientRequest(email))
		return err
	})
	if err != nil {
		t.Fatalf("email should be free after rollback: %v", err)
	}
}

func TestInsuranceUniqueName(t *testing.T) {
	ctx := context.Background()
	svcs := newServices()
	name := uniqueName("Mutual")

	if err := inTx(ctx, func(ctx context.Context) error {
		_, err := svcs.registry.CreateInsurance(ctx, name)
		return err
	}); err != nil {
		t.Fatalf("CreateInsurance: %v", err)
	}

	err := inTx(ctx, func(ctx context.Context) error {
		_, err := svcs.registry.CreateInsurance(ctx, strings.ToLower(name))
		return err
	})
	if apperr.KindOf(err) != apperr.KindDuplicate {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestClinicianHistorical(t *testing.T) {
	ctx := context.Background()
	svcs := newServices()

	var doctorID uuid.UUID
	if err := inTx(ctx, func(ctx context.Context) error {
		d, err := svcs.registry.CreateDoctor(ctx, clinicianRequest(uniqueEmail("doc")))
		if err != nil {
			return err
		}
		doctorID = d.ID
		return nil
	}); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}

	d, err := svcs.registry.GetDoctor(ctx, doctorID)
	if err != nil {
		t.Fatalf("GetDoctor: %v", err)
	}
	if d.Historical["specialty"] != "Cardiology" {
		t.Errorf("historical = %v", d.Historical)
	}

	// Staff and doctors are separate tables.
	if _, err := svcs.registry.GetStaff(ctx, doctorID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected doctor id to be unknown as staff, got %v", err)
	}
}

func TestPolyclinicDoctorAssignment(t *testing.T) {
	ctx := context.Background()
	svcs := newServices()

	var polyID, doctorID uuid.UUID
	if err := inTx(ctx, func(ctx context.Context) error {
		poly, err := svcs.registry.CreatePolyclinic(ctx, &registry.OrgUnitRequest{Name: uniqueName("Cardiology")})
		if err != nil {
			return err
		}
		doc, err := svcs.registry.CreateDoctor(ctx, clinicianRequest(uniqueEmail("polydoc")))
		if err != nil {
			return err
		}
		polyID, doctorID = poly.ID, doc.ID
		_, err = svcs.registry.AssignDoctor(ctx, polyID, doctorID)
		return err
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	t.Run("AssignTwice", func(t *testing.T) {
		err := inTx(ctx, func(ctx context.Context) error {
			_, err := svcs.registry.AssignDoctor(ctx, polyID, doctorID)
			return err
		})
		if apperr.KindOf(err) != apperr.KindDuplicate {
			t.Fatalf("expected duplicate, got %v", err)
		}
	})

	t.Run("ListMembers", func(t *testing.T) {
		docs, err := svcs.registry.ListPolyclinicDoctors(ctx, polyID)
		if err != nil {
			t.Fatalf("ListPolyclinicDoctors: %v", err)
		}
		if len(docs) != 1 || docs[0].ID != doctorID {
			t.Fatalf("unexpected members: %+v", docs)
		}
	})

	t.Run("Unassign", func(t *testing.T) {
		if err := inTx(ctx, func(ctx context.Context) error {
			return svcs.registry.UnassignDoctor(ctx, polyID, doctorID)
		}); err != nil {
			t.Fatalf("UnassignDoctor: %v", err)
		}
		err := inTx(ctx, func(ctx context.Context) error {
			return svcs.registry.UnassignDoctor(ctx, polyID, doctorID)
		})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("expected not found on second unassign, got %v", err)
		}
	})
}
