package emr

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/blobstore"
	"github.com/ehr/hospital/internal/platform/db"
)

// AttachmentField is the multipart field carrying a sub-record file.
const AttachmentField = "attachment"

type Handler struct {
	svc    *Service
	store  blobstore.Store
	logger zerolog.Logger
}

func NewHandler(svc *Service, store blobstore.Store, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/emr/new", h.CreateRecord, auth.Require(auth.ActionRecordCreate))
	g.POST("/emr/new-clinical-entry", h.AddClinicalEntry)
	g.POST("/emr/new-medical-note", h.AddMedicalNote, auth.Require(auth.ActionMedicalNote))
	g.POST("/emr/new-lab-report", h.AddLabReport, auth.Require(auth.ActionLabReport))
	g.PUT("/emr/clinical-entry/:id", h.UpdateClinicalEntry)
	g.PUT("/emr/medical-note/:id", h.UpdateMedicalNote, auth.Require(auth.ActionMedicalNote))
	g.PUT("/emr/lab-report/:id", h.UpdateLabReport, auth.Require(auth.ActionLabReport))
	g.GET("/emr/:id", h.GetRecord)
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

func (h *Handler) CreateRecord(c echo.Context) error {
	var req CreateRecordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), req.PatientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

// GetRecord returns the record of the patient named by :id.
func (h *Handler) GetRecord(c echo.Context) error {
	patientID, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	owner, err := h.svc.PatientOwner(ctx, patientID)
	if err := auth.CheckResource(ctx, auth.ActionRecordRead, err, owner); err != nil {
		return err
	}
	detail, err := h.svc.GetRecord(ctx, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) AddClinicalEntry(c echo.Context) error {
	var req ClinicalEntryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	owner, err := h.svc.RecordOwner(ctx, req.RecordID)
	if err := auth.CheckResource(ctx, auth.ActionClinicalEntry, err, owner); err != nil {
		return err
	}
	return h.withAttachment(c, KindClinicalEntry, http.StatusCreated, func(key *string) (any, error) {
		return h.svc.AddClinicalEntry(ctx, &req, key)
	})
}

func (h *Handler) UpdateClinicalEntry(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	owner, err := h.svc.ClinicalEntryOwner(ctx, id)
	if err := auth.CheckResource(ctx, auth.ActionClinicalEntry, err, owner); err != nil {
		return err
	}
	var req UpdateClinicalEntryRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	return h.withAttachment(c, KindClinicalEntry, http.StatusOK, func(key *string) (any, error) {
		return h.svc.UpdateClinicalEntry(ctx, id, &req, key)
	})
}

func (h *Handler) AddMedicalNote(c echo.Context) error {
	var req MedicalNoteRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	return h.withAttachment(c, KindMedicalNote, http.StatusCreated, func(key *string) (any, error) {
		return h.svc.AddMedicalNote(ctx, &req, key)
	})
}

func (h *Handler) UpdateMedicalNote(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateMedicalNoteRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	return h.withAttachment(c, KindMedicalNote, http.StatusOK, func(key *string) (any, error) {
		return h.svc.UpdateMedicalNote(ctx, id, &req, key)
	})
}

func (h *Handler) AddLabReport(c echo.Context) error {
	var req LabReportRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	return h.withAttachment(c, KindLabReport, http.StatusCreated, func(key *string) (any, error) {
		return h.svc.AddLabReport(ctx, &req, key)
	})
}

func (h *Handler) UpdateLabReport(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateLabReportRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	return h.withAttachment(c, KindLabReport, http.StatusOK, func(key *string) (any, error) {
		return h.svc.UpdateLabReport(ctx, id, &req, key)
	})
}

// withAttachment stores the optional uploaded file, runs save with its key
// and writes the result. The stored file is removed again when the request's
// transaction does not commit, or directly if save fails outside one.
func (h *Handler) withAttachment(c echo.Context, category string, status int, save func(key *string) (any, error)) error {
	key, err := blobstore.SaveFormFile(c, h.store, AttachmentField, category)
	if err != nil {
		return err
	}
	var ref *string
	registered := false
	remove := func() {
		ctx := context.WithoutCancel(c.Request().Context())
		if derr := h.store.Delete(ctx, key); derr != nil {
			h.logger.Warn().Err(derr).Str("key", key).Msg("remove orphaned attachment")
		}
	}
	if key != "" {
		ref = &key
		registered = db.OnRollback(c.Request().Context(), remove)
	}

	out, err := save(ref)
	if err != nil {
		if key != "" && !registered {
			remove()
		}
		return err
	}
	return c.JSON(status, out)
}
