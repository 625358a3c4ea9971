package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// Patient maps to the patients table.
type Patient struct {
	ID           uuid.UUID  `db:"patient_id" json:"PatientId"`
	FirstName    string     `db:"first_name" json:"FirstName"`
	LastName     string     `db:"last_name" json:"LastName"`
	Email        string     `db:"email" json:"Email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"DateOfBirth,omitempty"`
	PhoneNumber  *string    `db:"phone_number" json:"PhoneNumber,omitempty"`
	Address      *string    `db:"address" json:"Address,omitempty"`
	ProfileImage *string    `db:"profile_image" json:"ProfileImage,omitempty"`
	IsActive     bool       `db:"is_active" json:"IsActive"`
	CreatedAt    time.Time  `db:"created_at" json:"CreatedAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"UpdatedAt"`
}

// PatientProfile is the client-facing view of a Patient. It has no
// credential fields.
type PatientProfile struct {
	ID           uuid.UUID  `json:"PatientId"`
	FirstName    string     `json:"FirstName"`
	LastName     string     `json:"LastName"`
	Email        string     `json:"Email"`
	DateOfBirth  *time.Time `json:"DateOfBirth,omitempty"`
	PhoneNumber  *string    `json:"PhoneNumber,omitempty"`
	Address      *string    `json:"Address,omitempty"`
	ProfileImage *string    `json:"ProfileImage,omitempty"`
	IsActive     bool       `json:"IsActive"`
	CreatedAt    time.Time  `json:"CreatedAt"`
	UpdatedAt    time.Time  `json:"UpdatedAt"`
}

// Profile projects p onto PatientProfile.
func (p *Patient) Profile() *PatientProfile {
	var out PatientProfile
	// Both structs have only exported, identically typed fields, so Copy
	// cannot fail.
	_ = copier.Copy(&out, p)
	return &out
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Provider maps to the providers table.
type Provider struct {
	ID           uuid.UUID `db:"provider_id" json:"ProviderId"`
	FirstName    string    `db:"first_name" json:"FirstName"`
	LastName     string    `db:"last_name" json:"LastName"`
	Email        string    `db:"email" json:"Email"`
	Specialty    *string   `db:"specialty" json:"Specialty,omitempty"`
	Department   *string   `db:"department" json:"Department,omitempty"`
	PhoneNumber  *string   `db:"phone_number" json:"PhoneNumber,omitempty"`
	ProfileImage *string   `db:"profile_image" json:"ProfileImage,omitempty"`
	IsActive     bool      `db:"is_active" json:"IsActive"`
	CreatedAt    time.Time `db:"created_at" json:"CreatedAt"`
}

func (p *Provider) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
