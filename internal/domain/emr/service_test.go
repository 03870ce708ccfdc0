package emr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/codec"
)

// -- mocks --

type mockPatients map[uuid.UUID]uuid.UUID

func (m mockPatients) PatientOwner(_ context.Context, patientID uuid.UUID) (uuid.UUID, error) {
	owner, ok := m[patientID]
	if !ok {
		return uuid.Nil, apperr.NotFound("patient")
	}
	return owner, nil
}

// clock hands out strictly increasing creation times.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type mockRecords struct {
	mu    sync.Mutex
	clock *clock
	rows  map[uuid.UUID]*MedicalRecord
}

func (m *mockRecords) Create(_ context.Context, r *MedicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.PatientID == r.PatientID {
			return apperr.AlreadyExists("medical record already exists for this patient")
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = m.clock.next()
	r.LastEdited = r.CreatedAt
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *mockRecords) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperr.RecordNotFound()
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecords) GetByPatient(_ context.Context, patientID uuid.UUID) (*MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PatientID == patientID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.RecordNotFound()
}

func (m *mockRecords) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return apperr.RecordNotFound()
	}
	r.LastEdited = at
	return nil
}

// memSub stores one kind of sub-record in insertion order.
type memSub[T any] struct {
	mu     sync.Mutex
	what   string
	clock  *clock
	rows   []*T
	id     func(*T) *uuid.UUID
	record func(*T) uuid.UUID
	stamp  func(*T, time.Time)
}

func (m *memSub[T]) Create(_ context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.id(v) = uuid.New()
	m.stamp(v, m.clock.next())
	cp := *v
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memSub[T]) GetByID(_ context.Context, id uuid.UUID) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if *m.id(r) == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound(m.what)
}

func (m *memSub[T]) Update(_ context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if *m.id(r) == *m.id(v) {
			cp := *v
			m.rows[i] = &cp
			return nil
		}
	}
	return apperr.NotFound(m.what)
}

func (m *memSub[T]) ListByRecord(_ context.Context, recordID uuid.UUID) ([]*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*T
	for _, r := range m.rows {
		if m.record(r) == recordID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) EntryCreated(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[kind]++
}

type fixture struct {
	svc      *Service
	records  *mockRecords
	patients mockPatients
	recorder *countingRecorder
	now      time.Time
}

func newFixture() *fixture {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	records := &mockRecords{clock: clk, rows: map[uuid.UUID]*MedicalRecord{}}
	entries := &memSub[ClinicalEntry]{what: "clinical entry", clock: clk,
		id:     func(e *ClinicalEntry) *uuid.UUID { return &e.ID },
		record: func(e *ClinicalEntry) uuid.UUID { return e.RecordID },
		stamp:  func(e *ClinicalEntry, t time.Time) { e.CreatedAt = t }}
	notes := &memSub[MedicalNote]{what: "medical note", clock: clk,
		id:     func(n *MedicalNote) *uuid.UUID { return &n.ID },
		record: func(n *MedicalNote) uuid.UUID { return n.RecordID },
		stamp:  func(n *MedicalNote, t time.Time) { n.CreatedAt = t }}
	reports := &memSub[LabReport]{what: "lab report", clock: clk,
		id:     func(r *LabReport) *uuid.UUID { return &r.ID },
		record: func(r *LabReport) uuid.UUID { return r.RecordID },
		stamp:  func(r *LabReport, t time.Time) { r.CreatedAt = t }}

	f := &fixture{
		records:  records,
		patients: mockPatients{},
		recorder: &countingRecorder{counts: map[string]int{}},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(records, entries, notes, reports, f.patients).WithRecorder(f.recorder)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// addPatient registers a patient and returns its id and owning user id.
func (f *fixture) addPatient() (uuid.UUID, uuid.UUID) {
	patientID, userID := uuid.New(), uuid.New()
	f.patients[patientID] = userID
	return patientID, userID
}

func date(s string) codec.Date {
	d, err := codec.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

// -- tests --

func TestService_CreateRecord_OncePerPatient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()

	rec, err := f.svc.CreateRecord(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PatientID != patientID || rec.ID == uuid.Nil {
		t.Errorf("unexpected record %+v", rec)
	}

	_, err = f.svc.CreateRecord(ctx, patientID)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected already exists, got %v", err)
	}

	_, err = f.svc.CreateRecord(ctx, uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown patient, got %v", err)
	}
}

func TestService_AddClinicalEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)

	_, err := f.svc.AddClinicalEntry(ctx, &ClinicalEntryRequest{RecordID: uuid.New(), EntryDate: date("2024-02-01")}, nil)
	if !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("expected record not found, got %v", err)
	}

	key := "clinical_entry/2024/02/x-scan.png"
	req := &ClinicalEntryRequest{
		RecordID:  rec.ID,
		EntryDate: date("2024-02-01"),
		Vitals:    Vitals{Height: intPtr(180), Pulse: intPtr(72), BloodType: strPtr("O+")},
	}
	e, err := f.svc.AddClinicalEntry(ctx, req, &key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == uuid.Nil || e.CreatedAt.IsZero() {
		t.Error("expected server-assigned id and created_at")
	}
	if *e.Height != 180 || *e.Pulse != 72 || e.Weight != nil {
		t.Errorf("unexpected vitals %+v", e)
	}
	if e.Attachment == nil || *e.Attachment != key {
		t.Errorf("expected attachment key, got %v", e.Attachment)
	}

	stored, _ := f.records.GetByID(ctx, rec.ID)
	if !stored.LastEdited.Equal(f.now) {
		t.Errorf("expected last_edited %v, got %v", f.now, stored.LastEdited)
	}
	if f.recorder.counts[KindClinicalEntry] != 1 {
		t.Errorf("expected 1 recorded entry, got %d", f.recorder.counts[KindClinicalEntry])
	}
}

func TestService_GetRecord_Ordering(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)

	for _, d := range []string{"2024-03-01", "2024-01-15", "2024-01-15", "2023-12-31"} {
		if _, err := f.svc.AddClinicalEntry(ctx, &ClinicalEntryRequest{RecordID: rec.ID, EntryDate: date(d), Vitals: Vitals{Note: strPtr(d)}}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, d := range []string{"2024-05-01", "2024-04-01"} {
		req := &MedicalNoteRequest{RecordID: rec.ID, NoteDate: date(d), NoteContent: d, Diagnosis: "flu", DoctorID: uuid.New(), PolyID: uuid.New()}
		if _, err := f.svc.AddMedicalNote(ctx, req, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	detail, err := f.svc.GetRecord(ctx, patientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.ID != rec.ID {
		t.Errorf("expected record %s, got %s", rec.ID, detail.ID)
	}

	want := []string{"2023-12-31", "2024-01-15", "2024-01-15", "2024-03-01"}
	if len(detail.ClinicalEntries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(detail.ClinicalEntries))
	}
	for i, e := range detail.ClinicalEntries {
		if e.EntryDate.String() != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.EntryDate)
		}
	}
	if !detail.ClinicalEntries[1].CreatedAt.Before(detail.ClinicalEntries[2].CreatedAt) {
		t.Error("same-day entries must be ordered by created_at")
	}
	if detail.MedicalNotes[0].NoteContent != "2024-04-01" {
		t.Errorf("expected oldest note first, got %s", detail.MedicalNotes[0].NoteContent)
	}
	if detail.LabReports == nil || len(detail.LabReports) != 0 {
		t.Errorf("expected empty lab report list, got %v", detail.LabReports)
	}
}

type snapshotKey struct{}

// snapshotRecords reports whether the record lookup ran inside the snapshot.
type snapshotRecords struct {
	*mockRecords
	inside *bool
}

func (r snapshotRecords) GetByPatient(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error) {
	*r.inside = ctx.Value(snapshotKey{}) != nil
	return r.mockRecords.GetByPatient(ctx, patientID)
}

func TestService_GetRecord_ReadsOneSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	if _, err := f.svc.CreateRecord(ctx, patientID); err != nil {
		t.Fatal(err)
	}

	inside, calls := false, 0
	f.svc.records = snapshotRecords{mockRecords: f.records, inside: &inside}
	f.svc.WithSnapshot(func(ctx context.Context, fn func(ctx context.Context) error) error {
		calls++
		return fn(context.WithValue(ctx, snapshotKey{}, true))
	})

	if _, err := f.svc.GetRecord(ctx, patientID); err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if calls != 1 || !inside {
		t.Errorf("calls=%d inside=%v, want one snapshot covering the reads", calls, inside)
	}

	snapErr := errors.New("could not serialize access")
	f.svc.WithSnapshot(func(context.Context, func(context.Context) error) error { return snapErr })
	if _, err := f.svc.GetRecord(ctx, patientID); !errors.Is(err, snapErr) {
		t.Errorf("expected snapshot error, got %v", err)
	}
}

func TestService_GetRecord_Missing(t *testing.T) {
	f := newFixture()
	patientID, _ := f.addPatient()

	if _, err := f.svc.GetRecord(context.Background(), patientID); !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("expected record not found, got %v", err)
	}
	if _, err := f.svc.GetRecord(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected patient not found, got %v", err)
	}
}

func TestService_UpdateMedicalNote_Partial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)
	doctorID := uuid.New()

	n, err := f.svc.AddMedicalNote(ctx, &MedicalNoteRequest{
		RecordID: rec.ID, NoteDate: date("2024-04-01"), NoteContent: "cough", Diagnosis: "cold",
		DoctorID: doctorID, PolyID: uuid.New(),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.now = f.now.Add(time.Hour)
	updated, err := f.svc.UpdateMedicalNote(ctx, n.ID, &UpdateMedicalNoteRequest{Diagnosis: strPtr("flu")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Diagnosis != "flu" || updated.NoteContent != "cough" || updated.DoctorID != doctorID {
		t.Errorf("unexpected note after update: %+v", updated)
	}
	stored, _ := f.records.GetByID(ctx, rec.ID)
	if !stored.LastEdited.Equal(f.now) {
		t.Errorf("update must re-stamp last_edited, got %v", stored.LastEdited)
	}

	if _, err := f.svc.UpdateMedicalNote(ctx, uuid.New(), &UpdateMedicalNoteRequest{}, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_UpdateClinicalEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)
	staffID := uuid.New()
	e, _ := f.svc.AddClinicalEntry(ctx, &ClinicalEntryRequest{
		RecordID: rec.ID, EntryDate: date("2024-02-01"), StaffID: &staffID,
		Vitals: Vitals{Weight: intPtr(80)},
	}, nil)

	if _, err := f.svc.UpdateClinicalEntry(ctx, e.ID, &UpdateClinicalEntryRequest{EntryDate: &codec.Date{}}, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for empty date, got %v", err)
	}

	key := "clinical_entry/2024/02/new.pdf"
	updated, err := f.svc.UpdateClinicalEntry(ctx, e.ID, &UpdateClinicalEntryRequest{Vitals: Vitals{Weight: intPtr(78)}}, &key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *updated.Weight != 78 || updated.StaffID == nil || *updated.StaffID != staffID {
		t.Errorf("unexpected entry after update: %+v", updated)
	}
	if updated.Attachment == nil || *updated.Attachment != key {
		t.Errorf("expected replaced attachment, got %v", updated.Attachment)
	}
}

func TestService_AddLabReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, _ := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)

	r, err := f.svc.AddLabReport(ctx, &LabReportRequest{
		RecordID: rec.ID, ReportDate: date("2024-02-02"), LabNote: "CBC normal",
		StaffID: uuid.New(), LabID: uuid.New(),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Attachment != nil {
		t.Error("expected no attachment")
	}
	updated, err := f.svc.UpdateLabReport(ctx, r.ID, &UpdateLabReportRequest{LabNote: strPtr("CBC: low iron")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LabNote != "CBC: low iron" || updated.ReportDate.String() != "2024-02-02" {
		t.Errorf("unexpected report after update: %+v", updated)
	}
	if f.recorder.counts[KindLabReport] != 1 {
		t.Errorf("expected 1 recorded lab report, got %d", f.recorder.counts[KindLabReport])
	}
}

func TestService_Owners(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	patientID, userID := f.addPatient()
	rec, _ := f.svc.CreateRecord(ctx, patientID)
	e, _ := f.svc.AddClinicalEntry(ctx, &ClinicalEntryRequest{RecordID: rec.ID, EntryDate: date("2024-02-01")}, nil)

	if owner, err := f.svc.RecordOwner(ctx, rec.ID); err != nil || owner != userID {
		t.Errorf("RecordOwner = %v, %v", owner, err)
	}
	if owner, err := f.svc.ClinicalEntryOwner(ctx, e.ID); err != nil || owner != userID {
		t.Errorf("ClinicalEntryOwner = %v, %v", owner, err)
	}
	if _, err := f.svc.RecordOwner(ctx, uuid.New()); !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("expected record not found, got %v", err)
	}
}
