package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/hospital/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// pgBase picks the request transaction, then the request connection, then
// the pool.
type pgBase struct {
	pool *pgxpool.Pool
}

func (r *pgBase) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *pgBase) count(ctx context.Context, table string) (int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

// -- Patient Repository --

type patientRepoPG struct{ pgBase }

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pgBase{pool: pool}}
}

const patientCols = `id, user_id, name, dob, national_id, sex, phone_num, address,
	alias, relative_phone, insurance_id, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, user_id, name, dob, national_id, sex, phone_num, address,
			alias, relative_phone, insurance_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Name, p.DOB.Time, p.NationalID, p.Sex, p.PhoneNum, p.Address,
		p.Alias, p.RelativePhone, p.InsuranceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
	if err != nil {
		return nil, db.Classify(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name=$2, dob=$3, national_id=$4, sex=$5, phone_num=$6, address=$7,
			alias=$8, relative_phone=$9, insurance_id=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.DOB.Time, p.NationalID, p.Sex, p.PhoneNum, p.Address,
		p.Alias, p.RelativePhone, p.InsuranceID,
	).Scan(&p.UpdatedAt)
	return db.Classify(err, "patient")
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	total, err := r.count(ctx, "patients")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.DOB.Time, &p.NationalID, &p.Sex, &p.PhoneNum, &p.Address,
		&p.Alias, &p.RelativePhone, &p.InsuranceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Admin Repository --

type adminRepoPG struct{ pgBase }

func NewAdminRepo(pool *pgxpool.Pool) AdminRepository {
	return &adminRepoPG{pgBase{pool: pool}}
}

const adminCols = `id, user_id, name, dob, national_id, tax_number, sex, phone_num, address, created_at, updated_at`

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admins (id, user_id, name, dob, national_id, tax_number, sex, phone_num, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.Name, a.DOB.Time, a.NationalID, a.TaxNumber, a.Sex, a.PhoneNum, a.Address,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err, "admin")
}

func (r *adminRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	a, err := scanAdmin(r.conn(ctx).QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, "admin")
	}
	return a, nil
}

func (r *adminRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Admin, error) {
	a, err := scanAdmin(r.conn(ctx).QueryRow(ctx, `SELECT `+adminCols+` FROM admins WHERE user_id = $1`, userID))
	if err != nil {
		return nil, db.Classify(err, "admin")
	}
	return a, nil
}

func (r *adminRepoPG) Update(ctx context.Context, a *Admin) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE admins SET
			name=$2, dob=$3, national_id=$4, tax_number=$5, sex=$6, phone_num=$7, address=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Name, a.DOB.Time, a.NationalID, a.TaxNumber, a.Sex, a.PhoneNum, a.Address,
	).Scan(&a.UpdatedAt)
	return db.Classify(err, "admin")
}

func (r *adminRepoPG) List(ctx context.Context, limit, offset int) ([]*Admin, int, error) {
	total, err := r.count(ctx, "admins")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+adminCols+` FROM admins ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var items []*Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan admin: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.DOB.Time, &a.NationalID, &a.TaxNumber, &a.Sex, &a.PhoneNum, &a.Address,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// -- Clinician Repository --

type clinicianRepoPG struct {
	pgBase
	table string
	what  string
}

// NewDoctorRepo stores doctors.
func NewDoctorRepo(pool *pgxpool.Pool) ClinicianRepository {
	return &clinicianRepoPG{pgBase: pgBase{pool: pool}, table: "doctors", what: string(KindDoctor)}
}

// NewStaffRepo stores medical staff.
func NewStaffRepo(pool *pgxpool.Pool) ClinicianRepository {
	return &clinicianRepoPG{pgBase: pgBase{pool: pool}, table: "medical_staff", what: string(KindStaff)}
}

const clinicianCols = `id, user_id, name, dob, pob, national_id, phone_num, address,
	license_num, tax_num, sex, historical, created_at, updated_at`

func (r *clinicianRepoPG) Create(ctx context.Context, c *Clinician) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO `+r.table+` (id, user_id, name, dob, pob, national_id, phone_num, address,
			license_num, tax_num, sex, historical)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.Name, c.DOB.Time, c.POB, c.NationalID, c.PhoneNum, c.Address,
		c.LicenseNum, c.TaxNum, c.Sex, c.Historical,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return db.Classify(err, r.what)
}

func (r *clinicianRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	c, err := scanClinician(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicianCols+` FROM `+r.table+` WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, r.what)
	}
	return c, nil
}

func (r *clinicianRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Clinician, error) {
	c, err := scanClinician(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicianCols+` FROM `+r.table+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, db.Classify(err, r.what)
	}
	return c, nil
}

func (r *clinicianRepoPG) Update(ctx context.Context, c *Clinician) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE `+r.table+` SET
			name=$2, dob=$3, pob=$4, national_id=$5, phone_num=$6, address=$7,
			license_num=$8, tax_num=$9, sex=$10, historical=$11, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.DOB.Time, c.POB, c.NationalID, c.PhoneNum, c.Address,
		c.LicenseNum, c.TaxNum, c.Sex, c.Historical,
	).Scan(&c.UpdatedAt)
	return db.Classify(err, r.what)
}

func (r *clinicianRepoPG) List(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	total, err := r.count(ctx, r.table)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+clinicianCols+` FROM `+r.table+` ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	items, err := collectClinicians(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.DOB.Time, &c.POB, &c.NationalID, &c.PhoneNum, &c.Address,
		&c.LicenseNum, &c.TaxNum, &c.Sex, &c.Historical, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectClinicians(rows pgx.Rows) ([]*Clinician, error) {
	var items []*Clinician
	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clinician: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// -- Insurance Repository --

type insuranceRepoPG struct{ pgBase }

func NewInsuranceRepo(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pgBase{pool: pool}}
}

const insuranceCols = `id, name, created_at, updated_at`

func (r *insuranceRepoPG) Create(ctx context.Context, i *Insurance) error {
	i.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurances (id, name) VALUES ($1, $2)
		RETURNING created_at, updated_at`,
		i.ID, i.Name,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	return db.Classify(err, string(KindInsurance))
}

func (r *insuranceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Insurance, error) {
	i, err := scanInsurance(r.conn(ctx).QueryRow(ctx, `SELECT `+insuranceCols+` FROM insurances WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, string(KindInsurance))
	}
	return i, nil
}

func (r *insuranceRepoPG) GetByName(ctx context.Context, name string) (*Insurance, error) {
	i, err := scanInsurance(r.conn(ctx).QueryRow(ctx, `SELECT `+insuranceCols+` FROM insurances WHERE lower(name) = lower($1)`, name))
	if err != nil {
		return nil, db.Classify(err, string(KindInsurance))
	}
	return i, nil
}

func (r *insuranceRepoPG) Update(ctx context.Context, i *Insurance) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE insurances SET name=$2, updated_at=NOW() WHERE id = $1
		RETURNING updated_at`,
		i.ID, i.Name,
	).Scan(&i.UpdatedAt)
	return db.Classify(err, string(KindInsurance))
}

func (r *insuranceRepoPG) List(ctx context.Context, limit, offset int) ([]*Insurance, int, error) {
	total, err := r.count(ctx, "insurances")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+insuranceCols+` FROM insurances ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list insurances: %w", err)
	}
	defer rows.Close()

	var items []*Insurance
	for rows.Next() {
		i, err := scanInsurance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan insurance: %w", err)
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

func scanInsurance(row pgx.Row) (*Insurance, error) {
	var i Insurance
	if err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// -- Org Unit Repository --

type orgUnitRepoPG struct {
	pgBase
	table string
	what  string
}

func NewPolyclinicRepo(pool *pgxpool.Pool) OrgUnitRepository {
	return &orgUnitRepoPG{pgBase: pgBase{pool: pool}, table: "polyclinics", what: string(KindPolyclinic)}
}

func NewLaboratoryRepo(pool *pgxpool.Pool) OrgUnitRepository {
	return &orgUnitRepoPG{pgBase: pgBase{pool: pool}, table: "laboratories", what: string(KindLaboratory)}
}

const orgUnitCols = `id, name, description, created_at, updated_at`

func (r *orgUnitRepoPG) Create(ctx context.Context, o *OrgUnit) error {
	o.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO `+r.table+` (id, name, description) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		o.ID, o.Name, o.Description,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return db.Classify(err, r.what)
}

func (r *orgUnitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*OrgUnit, error) {
	o, err := scanOrgUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+orgUnitCols+` FROM `+r.table+` WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify(err, r.what)
	}
	return o, nil
}

func (r *orgUnitRepoPG) GetByName(ctx context.Context, name string) (*OrgUnit, error) {
	o, err := scanOrgUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+orgUnitCols+` FROM `+r.table+` WHERE lower(name) = lower($1)`, name))
	if err != nil {
		return nil, db.Classify(err, r.what)
	}
	return o, nil
}

func (r *orgUnitRepoPG) Update(ctx context.Context, o *OrgUnit) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE `+r.table+` SET name=$2, description=$3, updated_at=NOW() WHERE id = $1
		RETURNING updated_at`,
		o.ID, o.Name, o.Description,
	).Scan(&o.UpdatedAt)
	return db.Classify(err, r.what)
}

func (r *orgUnitRepoPG) List(ctx context.Context, limit, offset int) ([]*OrgUnit, int, error) {
	total, err := r.count(ctx, r.table)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+orgUnitCols+` FROM `+r.table+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.table, err)
	}
	defer rows.Close()

	var items []*OrgUnit
	for rows.Next() {
		o, err := scanOrgUnit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", r.what, err)
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func scanOrgUnit(row pgx.Row) (*OrgUnit, error) {
	var o OrgUnit
	if err := row.Scan(&o.ID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// -- Membership Repository --

type membershipRepoPG struct {
	pgBase
	table       string
	orgCol      string
	memberCol   string
	memberTable string
	what        string
}

// NewPolyclinicDoctorRepo stores polyclinic to doctor links.
func NewPolyclinicDoctorRepo(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{
		pgBase: pgBase{pool: pool}, table: "polyclinic_doctors",
		orgCol: "poly_id", memberCol: "doctor_id", memberTable: "doctors",
		what: "polyclinic doctor",
	}
}

// NewLaboratoryStaffRepo stores laboratory to medical staff links.
func NewLaboratoryStaffRepo(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{
		pgBase: pgBase{pool: pool}, table: "laboratory_staff",
		orgCol: "lab_id", memberCol: "staff_id", memberTable: "medical_staff",
		what: "laboratory staff",
	}
}

func (r *membershipRepoPG) Add(ctx context.Context, m *Membership) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO `+r.table+` (`+r.orgCol+`, `+r.memberCol+`) VALUES ($1, $2)
		RETURNING created_at`,
		m.OrgID, m.MemberID,
	).Scan(&m.CreatedAt)
	return db.Classify(err, r.what)
}

func (r *membershipRepoPG) Exists(ctx context.Context, orgID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM `+r.table+` WHERE `+r.orgCol+` = $1 AND `+r.memberCol+` = $2)`,
		orgID, memberID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", r.what, err)
	}
	return exists, nil
}

func (r *membershipRepoPG) Remove(ctx context.Context, orgID, memberID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM `+r.table+` WHERE `+r.orgCol+` = $1 AND `+r.memberCol+` = $2`, orgID, memberID)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", r.what, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *membershipRepoPG) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Clinician, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.user_id, m.name, m.dob, m.pob, m.national_id, m.phone_num, m.address,
			m.license_num, m.tax_num, m.sex, m.historical, m.created_at, m.updated_at
		FROM `+r.memberTable+` m
		JOIN `+r.table+` l ON l.`+r.memberCol+` = m.id
		WHERE l.`+r.orgCol+` = $1
		ORDER BY l.created_at, m.id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.what, err)
	}
	defer rows.Close()
	return collectClinicians(rows)
}

// -- Patient Interest Repository --

type interestRepoPG struct{ pgBase }

func NewInterestRepo(pool *pgxpool.Pool) InterestRepository {
	return &interestRepoPG{pgBase{pool: pool}}
}

const interestCols = `id, patient_id, doctor_id, staff_id, created_at`

func (r *interestRepoPG) Create(ctx context.Context, i *PatientInterest) error {
	i.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_interests (id, patient_id, doctor_id, staff_id) VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		i.ID, i.PatientID, i.DoctorID, i.StaffID,
	).Scan(&i.CreatedAt)
	return db.Classify(err, "patient interest")
}

func (r *interestRepoPG) Find(ctx context.Context, patientID uuid.UUID, doctorID, staffID *uuid.UUID) ([]*PatientInterest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interestCols+` FROM patient_interests
		WHERE patient_id = $1 AND (doctor_id = $2 OR staff_id = $3)`,
		patientID, doctorID, staffID)
	if err != nil {
		return nil, fmt.Errorf("find patient interests: %w", err)
	}
	defer rows.Close()
	return collectInterests(rows)
}

func (r *interestRepoPG) UnlinkDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	return r.unlink(ctx, "doctor_id", "staff_id", patientID, doctorID)
}

func (r *interestRepoPG) UnlinkStaff(ctx context.Context, patientID, staffID uuid.UUID) (bool, error) {
	return r.unlink(ctx, "staff_id", "doctor_id", patientID, staffID)
}

// unlink deletes rows where column is the only id set and nulls column on
// the rest, so the one-of check never sees a row with neither id.
func (r *interestRepoPG) unlink(ctx context.Context, column, other string, patientID, memberID uuid.UUID) (bool, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		WITH dropped AS (
			DELETE FROM patient_interests
			WHERE patient_id = $1 AND `+column+` = $2 AND `+other+` IS NULL
			RETURNING id
		), cleared AS (
			UPDATE patient_interests SET `+column+` = NULL
			WHERE patient_id = $1 AND `+column+` = $2 AND `+other+` IS NOT NULL
			RETURNING id
		)
		SELECT (SELECT count(*) FROM dropped) + (SELECT count(*) FROM cleared)`,
		patientID, memberID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("unlink patient interest: %w", err)
	}
	return n > 0, nil
}

func (r *interestRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientInterest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interestCols+` FROM patient_interests WHERE patient_id = $1 ORDER BY created_at, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient interests: %w", err)
	}
	defer rows.Close()
	return collectInterests(rows)
}

func collectInterests(rows pgx.Rows) ([]*PatientInterest, error) {
	var items []*PatientInterest
	for rows.Next() {
		var i PatientInterest
		if err := rows.Scan(&i.ID, &i.PatientID, &i.DoctorID, &i.StaffID, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patient interest: %w", err)
		}
		items = append(items, &i)
	}
	return items, rows.Err()
}
