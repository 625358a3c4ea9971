package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patientportal/portal/internal/platform/db"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// -- Patient Repository --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

const patientCols = `patient_id, first_name, last_name, email, password_hash,
	date_of_birth, phone_number, address, profile_image, is_active, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PasswordHash,
		&p.DateOfBirth, &p.PhoneNumber, &p.Address, &p.ProfileImage, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.Email = strings.ToLower(p.Email)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (patient_id, first_name, last_name, email, password_hash,
			date_of_birth, phone_number, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING is_active, created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.PasswordHash,
		p.DateOfBirth, p.PhoneNumber, p.Address,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *patientRepoPG) GetActiveByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_id = $1 AND is_active`, id))
}

func (r *patientRepoPG) GetActiveByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE lower(email) = lower($1) AND is_active`, email))
}

func (r *patientRepoPG) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// -- Provider Repository --

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepo(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepoPG{pool: pool}
}

func (r *providerRepoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

const providerCols = `provider_id, first_name, last_name, email, specialty, department,
	phone_number, profile_image, is_active, created_at`

func (r *providerRepoPG) scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Specialty, &p.Department,
		&p.PhoneNumber, &p.ProfileImage, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	p.Email = strings.ToLower(p.Email)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO providers (provider_id, first_name, last_name, email, specialty, department, phone_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING is_active, created_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Specialty, p.Department, p.PhoneNumber,
	).Scan(&p.IsActive, &p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *providerRepoPG) GetActive(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerCols+` FROM providers WHERE provider_id = $1 AND is_active`, id))
}

func (r *providerRepoPG) ListActive(ctx context.Context) ([]*Provider, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+providerCols+` FROM providers WHERE is_active ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Provider{}
	for rows.Next() {
		p, err := r.scanProvider(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
