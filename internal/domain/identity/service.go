package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patientportal/portal/internal/platform/apperror"
	"github.com/patientportal/portal/internal/platform/auth"
)

const minPasswordLen = 6

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(patientID uuid.UUID, email string) (*auth.Session, error)
}

// Revoker ends a session before its natural expiry.
type Revoker interface {
	Revoke(jti string, expiresAt time.Time)
}

type Service struct {
	patients  PatientRepository
	providers ProviderRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	revoker   Revoker
}

func NewService(patients PatientRepository, providers ProviderRepository, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{patients: patients, providers: providers, hasher: hasher, tokens: tokens}
}

// SetRevoker attaches the list Logout records revoked tokens in.
func (s *Service) SetRevoker(r Revoker) {
	s.revoker = r
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Address     *string `json:"address,omitempty"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token   string          `json:"token"`
	Patient *PatientProfile `json:"patient"`
}

// Login checks the credentials of an active patient and issues a token.
// Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperror.BadRequest("Email and password are required")
	}

	p, err := s.patients.GetActiveByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, apperror.Internal("Login failed. Please try again.", err)
	}
	if !s.hasher.Verify(p.PasswordHash, req.Password) {
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	return s.issue(p, "Login failed. Please try again.")
}

// Register creates a patient and issues a token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	p, err := s.validateRegistration(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.patients.EmailExists(ctx, p.Email)
	if err != nil {
		return nil, apperror.Internal("Registration failed. Please try again.", err)
	}
	if exists {
		return nil, apperror.Conflict("Email already registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.Internal("Registration failed. Please try again.", err)
	}
	p.PasswordHash = hash

	if err := s.patients.Create(ctx, p); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperror.Conflict("Email already registered")
		}
		return nil, apperror.Internal("Registration failed. Please try again.", err)
	}

	return s.issue(p, "Registration failed. Please try again.")
}

func (s *Service) validateRegistration(req RegisterRequest) (*Patient, error) {
	p := &Patient{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: optional(req.PhoneNumber),
		Address:     optional(req.Address),
	}
	if p.FirstName == "" || p.LastName == "" || p.Email == "" || req.Password == "" {
		return nil, apperror.BadRequest("First name, last name, email, and password are required")
	}
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return nil, apperror.BadRequest("Please provide a valid email address")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperror.BadRequest(fmt.Sprintf("Password must be at least %d characters long", minPasswordLen))
	}
	if dob := optional(req.DateOfBirth); dob != nil {
		t, err := time.Parse(time.DateOnly, *dob)
		if err != nil {
			return nil, apperror.BadRequest("Date of birth must be in YYYY-MM-DD format")
		}
		p.DateOfBirth = &t
	}
	return p, nil
}

func (s *Service) issue(p *Patient, failMsg string) (*AuthResult, error) {
	sess, err := s.tokens.Issue(p.ID, p.Email)
	if err != nil {
		return nil, apperror.Internal(failMsg, err)
	}
	return &AuthResult{Token: sess.Token, Patient: p.Profile()}, nil
}

// Logout revokes the token the principal authenticated with.
func (s *Service) Logout(p *auth.Principal) {
	if s.revoker != nil {
		s.revoker.Revoke(p.TokenID, p.ExpiresAt)
	}
}

// Profile returns the active patient's profile.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	p, err := s.patients.GetActiveByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Unauthorized("Patient not found or inactive")
	}
	if err != nil {
		return nil, err
	}
	return p.Profile(), nil
}

// ResolvePatient implements auth.PatientResolver.
func (s *Service) ResolvePatient(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	p, err := s.patients.GetActiveByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrPatientInactive
	}
	if err != nil {
		return nil, fmt.Errorf("resolve patient %s: %w", id, err)
	}
	return &auth.Principal{
		PatientID: p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}, nil
}

// CreateProvider adds a provider to the directory.
func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.FirstName == "" || p.LastName == "" || p.Email == "" {
		return fmt.Errorf("first name, last name and email are required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", p.Email, err)
	}
	p.Specialty = optional(p.Specialty)
	p.Department = optional(p.Department)
	p.PhoneNumber = optional(p.PhoneNumber)
	if err := s.providers.Create(ctx, p); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return fmt.Errorf("a provider with email %s already exists", p.Email)
		}
		return err
	}
	return nil
}

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
