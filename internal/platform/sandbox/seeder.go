// Package sandbox populates a development database with synthetic hospital
// data: insurances, polyclinics, laboratories, clinicians and patients with
// medical records. Output is reproducible for a given seed, which makes it
// suitable for UI demos and developer on-boarding.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/domain/emr"
	"github.com/ehr/hospital/internal/domain/registry"
	"github.com/ehr/hospital/internal/platform/codec"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Insurances        int    `json:"insurances"`
	Polyclinics       int    `json:"polyclinics"`
	Laboratories      int    `json:"laboratories"`
	Doctors           int    `json:"doctors"`
	Staff             int    `json:"staff"`
	Patients          int    `json:"patients"`
	EntriesPerPatient int    `json:"entries_per_patient"`
	Password          string `json:"-"`
	Seed              int64  `json:"seed"`
}

// DefaultSeedConfig returns a small data set that exercises every entity.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Insurances:        3,
		Polyclinics:       4,
		Laboratories:      2,
		Doctors:           6,
		Staff:             4,
		Patients:          20,
		EntriesPerPatient: 2,
		Password:          "sandbox-password",
	}
}

// SeedResult counts what was created.
type SeedResult struct {
	Insurances      int           `json:"insurances"`
	Polyclinics     int           `json:"polyclinics"`
	Laboratories    int           `json:"laboratories"`
	Doctors         int           `json:"doctors"`
	Staff           int           `json:"staff"`
	Patients        int           `json:"patients"`
	Records         int           `json:"records"`
	ClinicalEntries int           `json:"clinical_entries"`
	MedicalNotes    int           `json:"medical_notes"`
	LabReports      int           `json:"lab_reports"`
	Accounts        []string      `json:"accounts"`
	Duration        time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Andrew", "Kevin",
		"Brian", "George", "Edward", "Samuel", "Patrick", "Tyler",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Susan", "Sarah",
		"Karen", "Nancy", "Margaret", "Emily", "Michelle", "Amanda", "Laura",
		"Anna", "Emma", "Nicole", "Helen", "Rachel", "Maria",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Martinez", "Wilson", "Anderson", "Taylor", "Moore", "Martin",
		"Lee", "Thompson", "White", "Harris", "Clark", "Lewis", "Walker",
	}
	streets = []string{
		"123 Main St", "456 Oak Ave", "789 Elm St", "321 Pine Rd",
		"654 Maple Dr", "987 Cedar Ln", "147 Birch Blvd", "258 Walnut Way",
	}
	cities = []string{
		"Springfield", "Riverside", "Fairview", "Madison", "Georgetown",
		"Clinton", "Salem", "Franklin",
	}
	insuranceNames = []string{
		"National Health Fund", "Allied Mutual", "Cigna Global",
		"Prudential Health", "Blue Shield", "Meridian Care",
	}
	polyclinicNames = []string{
		"General Medicine", "Pediatrics", "Cardiology", "Dermatology",
		"Neurology", "Orthopedics", "Ophthalmology", "Obstetrics",
	}
	laboratoryNames = []string{
		"Hematology", "Clinical Chemistry", "Microbiology", "Radiology",
		"Pathology",
	}
	bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	diagnoses  = []struct{ code, display string }{
		{"J06.9", "Acute upper respiratory infection"},
		{"I10", "Essential hypertension"},
		{"E11.9", "Type 2 diabetes mellitus without complications"},
		{"M54.5", "Low back pain"},
		{"K21.9", "Gastro-esophageal reflux disease"},
		{"J45.909", "Asthma, uncomplicated"},
		{"F41.1", "Generalized anxiety disorder"},
		{"L20.9", "Atopic dermatitis"},
	}
	labNotes = []string{
		"Complete blood count within normal limits.",
		"HbA1c 7.2%, fasting glucose 142 mg/dL.",
		"Lipid panel: LDL 162 mg/dL, HDL 41 mg/dL.",
		"Urinalysis negative for protein and glucose.",
		"TSH 2.1 mIU/L.",
		"Throat culture negative for group A streptococcus.",
	}
	specialties = []string{
		"Internal Medicine", "Pediatrics", "Cardiology", "Family Medicine",
		"Neurology", "Dermatology",
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces registry and record requests from a seeded source.
type DataGenerator struct {
	rng     *rand.Rand
	tag     string
	counter int
	now     time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen. Unique fields carry a tag derived from the
// seed, so runs with different seeds never collide.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		tag: fmt.Sprintf("%06x", uint64(seed)&0xffffff),
		now: time.Now().UTC(),
	}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) next() int {
	g.counter++
	return g.counter
}

// uniqueName returns the i-th entry of pool, tagged so that repeated runs
// and pools shorter than the requested count stay unique.
func (g *DataGenerator) uniqueName(pool []string, i int) string {
	name := pool[i%len(pool)]
	if round := i / len(pool); round > 0 {
		name = fmt.Sprintf("%s %d", name, round+1)
	}
	return fmt.Sprintf("%s (sandbox %s)", name, g.tag)
}

func (g *DataGenerator) randomDate(minYear, maxYear int) codec.Date {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := time.Month(1 + g.rng.Intn(12))
	d := 1 + g.rng.Intn(28)
	return codec.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (g *DataGenerator) recentDate() codec.Date {
	return codec.NewDate(g.now.AddDate(0, 0, -g.rng.Intn(365)))
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d",
		200+g.rng.Intn(800),
		200+g.rng.Intn(800),
		g.rng.Intn(10000),
	)
}

func (g *DataGenerator) person() (name, sex string) {
	if g.rng.Intn(2) == 0 {
		return g.pick(firstNamesMale) + " " + g.pick(lastNames), "male"
	}
	return g.pick(firstNamesFemale) + " " + g.pick(lastNames), "female"
}

func (g *DataGenerator) address() string {
	return fmt.Sprintf("%s, %s", g.pick(streets), g.pick(cities))
}

func (g *DataGenerator) account(role, password string) registry.Account {
	return registry.Account{
		Email:    fmt.Sprintf("%s.%d.%s@sandbox.test", role, g.next(), g.tag),
		Password: password,
	}
}

func (g *DataGenerator) nationalID() string {
	return fmt.Sprintf("NID-%s-%08d", g.tag, g.rng.Intn(100000000))
}

// Patient produces a patient registration, optionally insured.
func (g *DataGenerator) Patient(password string, insuranceID *uuid.UUID) *registry.CreatePatientRequest {
	name, sex := g.person()
	req := &registry.CreatePatientRequest{
		Account:     g.account("patient", password),
		Name:        name,
		DOB:         g.randomDate(1940, 2020),
		NationalID:  g.nationalID(),
		Sex:         sex,
		PhoneNum:    g.randomPhone(),
		Address:     g.address(),
		InsuranceID: insuranceID,
	}
	if g.rng.Intn(2) == 0 {
		phone := g.randomPhone()
		req.RelativePhone = &phone
	}
	return req
}

// Clinician produces a doctor or staff registration; role is used in the
// generated email only.
func (g *DataGenerator) Clinician(role, password string) *registry.CreateClinicianRequest {
	name, sex := g.person()
	hist, _ := json.Marshal(map[string]any{
		"specialty":        g.pick(specialties),
		"years_experience": 1 + g.rng.Intn(30),
	})
	return &registry.CreateClinicianRequest{
		Account:    g.account(role, password),
		Name:       name,
		DOB:        g.randomDate(1955, 1998),
		POB:        g.pick(cities),
		NationalID: g.nationalID(),
		PhoneNum:   g.randomPhone(),
		Address:    g.address(),
		LicenseNum: fmt.Sprintf("LIC-%s-%06d", g.tag, g.rng.Intn(1000000)),
		Sex:        sex,
		Historical: hist,
	}
}

// ClinicalEntry produces a set of plausible vital signs.
func (g *DataGenerator) ClinicalEntry(recordID uuid.UUID, staffID *uuid.UUID) *emr.ClinicalEntryRequest {
	height := 150 + g.rng.Intn(45)
	weight := 45 + g.rng.Intn(60)
	temp := 36.0 + float64(g.rng.Intn(25))/10
	blood := g.pick(bloodTypes)
	systolic := 100 + g.rng.Intn(50)
	diastolic := 60 + g.rng.Intn(30)
	pulse := 55 + g.rng.Intn(45)
	return &emr.ClinicalEntryRequest{
		RecordID:  recordID,
		EntryDate: g.recentDate(),
		StaffID:   staffID,
		Vitals: emr.Vitals{
			Height:    &height,
			Weight:    &weight,
			BodyTemp:  &temp,
			BloodType: &blood,
			Systolic:  &systolic,
			Diastolic: &diastolic,
			Pulse:     &pulse,
		},
	}
}

// MedicalNote produces a consultation note with a diagnosis.
func (g *DataGenerator) MedicalNote(recordID, doctorID, polyID uuid.UUID) *emr.MedicalNoteRequest {
	dx := diagnoses[g.rng.Intn(len(diagnoses))]
	return &emr.MedicalNoteRequest{
		RecordID:    recordID,
		NoteDate:    g.recentDate(),
		NoteContent: fmt.Sprintf("Patient seen in clinic. Assessment consistent with %s.", dx.display),
		Diagnosis:   fmt.Sprintf("%s %s", dx.code, dx.display),
		DoctorID:    doctorID,
		PolyID:      polyID,
	}
}

// LabReport produces a laboratory result note.
func (g *DataGenerator) LabReport(recordID, staffID, labID uuid.UUID) *emr.LabReportRequest {
	return &emr.LabReportRequest{
		RecordID:   recordID,
		ReportDate: g.recentDate(),
		LabNote:    g.pick(labNotes),
		StaffID:    staffID,
		LabID:      labID,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Registry is the part of the registry service the seeder writes through.
type Registry interface {
	CreateInsurance(ctx context.Context, name string) (*registry.Insurance, error)
	CreatePolyclinic(ctx context.Context, req *registry.OrgUnitRequest) (*registry.OrgUnit, error)
	CreateLaboratory(ctx context.Context, req *registry.OrgUnitRequest) (*registry.OrgUnit, error)
	CreateDoctor(ctx context.Context, req *registry.CreateClinicianRequest) (*registry.Clinician, error)
	CreateStaff(ctx context.Context, req *registry.CreateClinicianRequest) (*registry.Clinician, error)
	CreatePatient(ctx context.Context, req *registry.CreatePatientRequest) (*registry.Patient, error)
	AssignDoctor(ctx context.Context, polyID, doctorID uuid.UUID) (*registry.Membership, error)
	AssignStaff(ctx context.Context, labID, staffID uuid.UUID) (*registry.Membership, error)
}

// Records is the part of the medical record service the seeder writes through.
type Records interface {
	CreateRecord(ctx context.Context, patientID uuid.UUID) (*emr.MedicalRecord, error)
	AddClinicalEntry(ctx context.Context, req *emr.ClinicalEntryRequest, attachment *string) (*emr.ClinicalEntry, error)
	AddMedicalNote(ctx context.Context, req *emr.MedicalNoteRequest, attachment *string) (*emr.MedicalNote, error)
	AddLabReport(ctx context.Context, req *emr.LabReportRequest, attachment *string) (*emr.LabReport, error)
}

// Seeder writes generated data through the domain services, so every
// validation and invariant of the normal write path applies.
type Seeder struct {
	registry  Registry
	records   Records
	generator *DataGenerator
	config    SeedConfig
	logger    zerolog.Logger
}

func NewSeeder(reg Registry, records Records, config SeedConfig, logger zerolog.Logger) *Seeder {
	if config.Password == "" {
		config.Password = DefaultSeedConfig().Password
	}
	return &Seeder{
		registry:  reg,
		records:   records,
		generator: NewDataGenerator(config.Seed),
		config:    config,
		logger:    logger,
	}
}

type orgUnit struct {
	id      uuid.UUID
	members []uuid.UUID
}

// Generate creates the configured data set. Callers should run it inside a
// single transaction so a failure leaves nothing behind.
func (s *Seeder) Generate(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	g := s.generator
	result := &SeedResult{}

	// Insurances
	var insuranceIDs []uuid.UUID
	for i := 0; i < s.config.Insurances; i++ {
		ins, err := s.registry.CreateInsurance(ctx, g.uniqueName(insuranceNames, i))
		if err != nil {
			return nil, fmt.Errorf("seed insurance: %w", err)
		}
		insuranceIDs = append(insuranceIDs, ins.ID)
	}
	result.Insurances = len(insuranceIDs)

	// Organisation units
	polys, err := s.seedUnits(ctx, s.config.Polyclinics, polyclinicNames, s.registry.CreatePolyclinic)
	if err != nil {
		return nil, fmt.Errorf("seed polyclinic: %w", err)
	}
	result.Polyclinics = len(polys)

	labs, err := s.seedUnits(ctx, s.config.Laboratories, laboratoryNames, s.registry.CreateLaboratory)
	if err != nil {
		return nil, fmt.Errorf("seed laboratory: %w", err)
	}
	result.Laboratories = len(labs)

	// Clinicians, assigned round-robin
	for i := 0; i < s.config.Doctors; i++ {
		req := g.Clinician("doctor", s.config.Password)
		doc, err := s.registry.CreateDoctor(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seed doctor: %w", err)
		}
		result.Accounts = append(result.Accounts, req.Email)
		if len(polys) > 0 {
			poly := polys[i%len(polys)]
			if _, err := s.registry.AssignDoctor(ctx, poly.id, doc.ID); err != nil {
				return nil, fmt.Errorf("assign doctor: %w", err)
			}
			poly.members = append(poly.members, doc.ID)
		}
		result.Doctors++
	}

	var staffIDs []uuid.UUID
	for i := 0; i < s.config.Staff; i++ {
		req := g.Clinician("staff", s.config.Password)
		st, err := s.registry.CreateStaff(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seed staff: %w", err)
		}
		result.Accounts = append(result.Accounts, req.Email)
		staffIDs = append(staffIDs, st.ID)
		if len(labs) > 0 {
			lab := labs[i%len(labs)]
			if _, err := s.registry.AssignStaff(ctx, lab.id, st.ID); err != nil {
				return nil, fmt.Errorf("assign staff: %w", err)
			}
			lab.members = append(lab.members, st.ID)
		}
		result.Staff++
	}
	s.logger.Debug().
		Int("doctors", result.Doctors).
		Int("staff", result.Staff).
		Msg("seeded clinicians")

	// Patients and their records
	for i := 0; i < s.config.Patients; i++ {
		var insuranceID *uuid.UUID
		if len(insuranceIDs) > 0 && g.rng.Intn(4) != 0 {
			id := insuranceIDs[g.rng.Intn(len(insuranceIDs))]
			insuranceID = &id
		}
		req := g.Patient(s.config.Password, insuranceID)
		patient, err := s.registry.CreatePatient(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		result.Patients++
		result.Accounts = append(result.Accounts, req.Email)

		record, err := s.records.CreateRecord(ctx, patient.ID)
		if err != nil {
			return nil, fmt.Errorf("seed record: %w", err)
		}
		result.Records++

		if err := s.seedEntries(ctx, record.ID, polys, labs, staffIDs, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("patients", result.Patients).
		Int("records", result.Records).
		Dur("duration", result.Duration).
		Msg("sandbox data seeded")
	return result, nil
}

func (s *Seeder) seedUnits(ctx context.Context, n int, names []string,
	create func(context.Context, *registry.OrgUnitRequest) (*registry.OrgUnit, error)) ([]*orgUnit, error) {
	var out []*orgUnit
	for i := 0; i < n; i++ {
		name := s.generator.uniqueName(names, i)
		unit, err := create(ctx, &registry.OrgUnitRequest{
			Name:        name,
			Description: "Sandbox " + names[i%len(names)],
		})
		if err != nil {
			return nil, err
		}
		out = append(out, &orgUnit{id: unit.ID})
	}
	return out, nil
}

func (s *Seeder) seedEntries(ctx context.Context, recordID uuid.UUID, polys, labs []*orgUnit,
	staffIDs []uuid.UUID, result *SeedResult) error {
	g := s.generator
	for j := 0; j < s.config.EntriesPerPatient; j++ {
		var staffID *uuid.UUID
		if len(staffIDs) > 0 {
			id := staffIDs[g.rng.Intn(len(staffIDs))]
			staffID = &id
		}
		if _, err := s.records.AddClinicalEntry(ctx, g.ClinicalEntry(recordID, staffID), nil); err != nil {
			return fmt.Errorf("seed clinical entry: %w", err)
		}
		result.ClinicalEntries++

		if poly := pickStaffed(g, polys); poly != nil {
			doctorID := poly.members[g.rng.Intn(len(poly.members))]
			if _, err := s.records.AddMedicalNote(ctx, g.MedicalNote(recordID, doctorID, poly.id), nil); err != nil {
				return fmt.Errorf("seed medical note: %w", err)
			}
			result.MedicalNotes++
		}

		if lab := pickStaffed(g, labs); lab != nil {
			staff := lab.members[g.rng.Intn(len(lab.members))]
			if _, err := s.records.AddLabReport(ctx, g.LabReport(recordID, staff, lab.id), nil); err != nil {
				return fmt.Errorf("seed lab report: %w", err)
			}
			result.LabReports++
		}
	}
	return nil
}

// pickStaffed returns a random unit that has at least one member.
func pickStaffed(g *DataGenerator, units []*orgUnit) *orgUnit {
	var staffed []*orgUnit
	for _, u := range units {
		if len(u.members) > 0 {
			staffed = append(staffed, u)
		}
	}
	if len(staffed) == 0 {
		return nil
	}
	return staffed[g.rng.Intn(len(staffed))]
}
