package registry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the registry. api must require authentication; open
// only resolves a token when one is sent and serves the bootstrap account
// endpoint.
func (h *Handler) RegisterRoutes(api *echo.Group, open *echo.Group) {
	open.POST("/user/new", h.CreateAccount)

	api.POST("/admin/new", h.CreateAdmin, auth.Require(auth.ActionUserCreate))
	api.GET("/admin", h.ListAdmins, auth.Require(auth.ActionAdminRead))
	api.GET("/admin/:id", h.GetAdmin)
	api.PUT("/admin/:id", h.UpdateAdmin)

	api.POST("/patient/new", h.CreatePatient, auth.Require(auth.ActionPatientCreate))
	api.GET("/patient", h.ListPatients, auth.Require(auth.ActionPatientList))
	api.GET("/patient/:id", h.GetPatient)
	api.PUT("/patient/:id", h.UpdatePatient)
	api.POST("/patient/assign-interest", h.AssignInterest, auth.Require(auth.ActionInterestManage))
	api.POST("/patient/remove-interest", h.RemoveInterest, auth.Require(auth.ActionInterestManage))
	api.GET("/patient/:id/interests", h.ListInterests)

	api.POST("/doctor/new", h.CreateDoctor, auth.Require(auth.ActionDoctorCreate))
	api.GET("/doctor", h.ListDoctors, auth.Require(auth.ActionDoctorRead))
	api.GET("/doctor/:id", h.GetDoctor, auth.Require(auth.ActionDoctorRead))
	api.PUT("/doctor/:id", h.UpdateDoctor)

	api.POST("/staff/new", h.CreateStaff, auth.Require(auth.ActionStaffCreate))
	api.GET("/staff", h.ListStaff, auth.Require(auth.ActionStaffRead))
	api.GET("/staff/:id", h.GetStaff, auth.Require(auth.ActionStaffRead))
	api.PUT("/staff/:id", h.UpdateStaff)

	api.POST("/insurance/new", h.CreateInsurance, auth.Require(auth.ActionInsuranceWrite))
	api.GET("/insurance", h.ListInsurances, auth.Require(auth.ActionInsuranceRead))
	api.GET("/insurance/:id", h.GetInsurance, auth.Require(auth.ActionInsuranceRead))
	api.PUT("/insurance/:id", h.UpdateInsurance, auth.Require(auth.ActionInsuranceWrite))

	api.POST("/poly/new", h.CreatePolyclinic, auth.Require(auth.ActionOrgWrite))
	api.GET("/poly", h.ListPolyclinics, auth.Require(auth.ActionOrgRead))
	api.GET("/poly/:id", h.GetPolyclinic, auth.Require(auth.ActionOrgRead))
	api.PUT("/poly/:id", h.UpdatePolyclinic, auth.Require(auth.ActionOrgWrite))
	api.GET("/poly/:id/doctors", h.ListPolyclinicDoctors, auth.Require(auth.ActionOrgRead))
	api.POST("/poly/assign-doctor", h.AssignDoctor, auth.Require(auth.ActionAssociationManage))
	api.POST("/poly/remove-doctor", h.RemoveDoctor, auth.Require(auth.ActionAssociationManage))

	api.POST("/lab/new", h.CreateLaboratory, auth.Require(auth.ActionOrgWrite))
	api.GET("/lab", h.ListLaboratories, auth.Require(auth.ActionOrgRead))
	api.GET("/lab/:id", h.GetLaboratory, auth.Require(auth.ActionOrgRead))
	api.PUT("/lab/:id", h.UpdateLaboratory, auth.Require(auth.ActionOrgWrite))
	api.GET("/lab/:id/staff", h.ListLaboratoryStaff, auth.Require(auth.ActionOrgRead))
	api.POST("/lab/assign-staff", h.AssignStaff, auth.Require(auth.ActionAssociationManage))
	api.POST("/lab/remove-staff", h.RemoveStaff, auth.Require(auth.ActionAssociationManage))
}

func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

// -- Accounts / Admin --

// CreateAccount creates an admin account. While no user exists it is open
// so that the first administrator can be created.
func (h *Handler) CreateAccount(c echo.Context) error {
	ctx := c.Request().Context()
	bootstrap, err := h.svc.NeedsBootstrap(ctx)
	if err != nil {
		return err
	}
	if !bootstrap {
		if err := auth.Check(ctx, auth.ActionUserCreate); err != nil {
			return err
		}
	}
	return h.CreateAdmin(c)
}

func (h *Handler) CreateAdmin(c echo.Context) error {
	var req CreateAdminRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	a, err := h.svc.CreateAdmin(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAdmins(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAdmins(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) GetAdmin(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAdmin(ctx, id)
	var owner uuid.UUID
	if a != nil {
		owner = a.UserID
	}
	if err := auth.CheckResource(ctx, auth.ActionAdminRead, err, owner); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAdmin(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := h.svc.GetAdmin(ctx, id)
	var owner uuid.UUID
	if current != nil {
		owner = current.UserID
	}
	if err := auth.CheckResource(ctx, auth.ActionAdminUpdate, err, owner); err != nil {
		return err
	}

	var req UpdateAdminRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	a, err := h.svc.UpdateAdmin(ctx, id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// -- Patient --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, id)
	var owner uuid.UUID
	if p != nil {
		owner = p.UserID
	}
	if err := auth.CheckResource(ctx, auth.ActionPatientRead, err, owner); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := h.svc.GetPatient(ctx, id)
	var owner uuid.UUID
	if current != nil {
		owner = current.UserID
	}
	if err := auth.CheckResource(ctx, auth.ActionPatientUpdate, err, owner); err != nil {
		return err
	}

	var req UpdatePatientRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(ctx, id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// -- Doctor / Medical Staff --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req CreateClinicianRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	return h.updateClinician(c, auth.ActionDoctorUpdate, h.svc.GetDoctor, h.svc.UpdateDoctor)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var req CreateClinicianRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	s, err := h.svc.CreateStaff(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListStaff(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListStaff(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) GetStaff(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.GetStaff(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	return h.updateClinician(c, auth.ActionStaffUpdate, h.svc.GetStaff, h.svc.UpdateStaff)
}

type (
	clinicianGetter  func(ctx context.Context, id uuid.UUID) (*Clinician, error)
	clinicianUpdater func(ctx context.Context, id uuid.UUID, req *UpdateClinicianRequest) (*Clinician, error)
)

func (h *Handler) updateClinician(c echo.Context, action auth.Action, get clinicianGetter, update clinicianUpdater) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := get(ctx, id)
	var owner uuid.UUID
	if current != nil {
		owner = current.UserID
	}
	if err := auth.CheckResource(ctx, action, err, owner); err != nil {
		return err
	}

	var req UpdateClinicianRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	updated, err := update(ctx, id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// -- Insurance --

func (h *Handler) CreateInsurance(c echo.Context) error {
	var req InsuranceRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	i, err := h.svc.CreateInsurance(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, i)
}

func (h *Handler) ListInsurances(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInsurances(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) GetInsurance(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	i, err := h.svc.GetInsurance(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, i)
}

func (h *Handler) UpdateInsurance(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req InsuranceRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	i, err := h.svc.UpdateInsurance(c.Request().Context(), id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, i)
}

// -- Polyclinic / Laboratory --

func (h *Handler) CreatePolyclinic(c echo.Context) error {
	return h.createOrgUnit(c, h.svc.CreatePolyclinic)
}

func (h *Handler) CreateLaboratory(c echo.Context) error {
	return h.createOrgUnit(c, h.svc.CreateLaboratory)
}

func (h *Handler) ListPolyclinics(c echo.Context) error {
	return h.listOrgUnits(c, h.svc.ListPolyclinics)
}

func (h *Handler) ListLaboratories(c echo.Context) error {
	return h.listOrgUnits(c, h.svc.ListLaboratories)
}

func (h *Handler) GetPolyclinic(c echo.Context) error {
	return h.getOrgUnit(c, h.svc.GetPolyclinic)
}

func (h *Handler) GetLaboratory(c echo.Context) error {
	return h.getOrgUnit(c, h.svc.GetLaboratory)
}

func (h *Handler) UpdatePolyclinic(c echo.Context) error {
	return h.updateOrgUnit(c, h.svc.UpdatePolyclinic)
}

func (h *Handler) UpdateLaboratory(c echo.Context) error {
	return h.updateOrgUnit(c, h.svc.UpdateLaboratory)
}

func (h *Handler) createOrgUnit(c echo.Context, create func(context.Context, *OrgUnitRequest) (*OrgUnit, error)) error {
	var req OrgUnitRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	o, err := create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) listOrgUnits(c echo.Context, list func(context.Context, int, int) ([]*OrgUnit, int, error)) error {
	pg := pagination.FromContext(c)
	items, total, err := list(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(emptyIfNil(items), total, pg))
}

func (h *Handler) getOrgUnit(c echo.Context, get func(context.Context, uuid.UUID) (*OrgUnit, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) updateOrgUnit(c echo.Context, update func(context.Context, uuid.UUID, *UpdateOrgUnitRequest) (*OrgUnit, error)) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateOrgUnitRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	o, err := update(c.Request().Context(), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// -- Associations --

func (h *Handler) ListPolyclinicDoctors(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	doctors, err := h.svc.ListPolyclinicDoctors(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emptyIfNil(doctors))
}

func (h *Handler) AssignDoctor(c echo.Context) error {
	var req PolyDoctorRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	m, err := h.svc.AssignDoctor(c.Request().Context(), req.PolyID, req.DoctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) RemoveDoctor(c echo.Context) error {
	var req PolyDoctorRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.svc.UnassignDoctor(c.Request().Context(), req.PolyID, req.DoctorID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListLaboratoryStaff(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	staff, err := h.svc.ListLaboratoryStaff(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emptyIfNil(staff))
}

func (h *Handler) AssignStaff(c echo.Context) error {
	var req LabStaffRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	m, err := h.svc.AssignStaff(c.Request().Context(), req.LabID, req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) RemoveStaff(c echo.Context) error {
	var req LabStaffRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.svc.UnassignStaff(c.Request().Context(), req.LabID, req.StaffID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssignInterest(c echo.Context) error {
	var req InterestRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	i, err := h.svc.AssignInterest(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, i)
}

func (h *Handler) RemoveInterest(c echo.Context) error {
	var req InterestRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.svc.UnassignInterest(c.Request().Context(), &req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListInterests(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	owner, err := h.svc.PatientOwner(ctx, id)
	if err := auth.CheckResource(ctx, auth.ActionInterestRead, err, owner); err != nil {
		return err
	}
	interests, err := h.svc.ListInterests(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emptyIfNil(interests))
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
