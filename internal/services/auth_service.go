// Package services – AuthService
//
// AuthService owns account creation, password sign-in, bearer-token
// resolution and self-service profile edits. Passwords are stored as bcrypt
// hashes; tokens are HS256 JWTs issued by internal/auth.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/auth"
	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores the rest
	maxNameRunes   = 120
)

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Name       string
	Email      string
	Password   string
	Department string
	Semester   int
	RollNumber string
	Phone      string
	Hostel     *string
	Avatar     *string
}

// ProfilePatch carries editable profile fields. Nil fields are unchanged.
type ProfilePatch struct {
	Name       *string
	Department *string
	Semester   *int
	Phone      *string
	Hostel     *string
	Avatar     *string
}

// Session is the result of a successful signup or signin.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService issues sessions and resolves bearer tokens to actors.
type AuthService struct {
	DB     *gorm.DB
	Tokens *auth.Issuer
	// Cost is the bcrypt cost; zero uses bcrypt.DefaultCost.
	Cost int
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, tokens *auth.Issuer) *AuthService {
	return &AuthService{DB: db, Tokens: tokens}
}

func (s *AuthService) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

// Signup validates in, creates a student account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	v := &ValidationError{}
	in.Name = normalizeText(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = domain.NormalizeDepartment(in.Department)
	in.RollNumber = strings.TrimSpace(in.RollNumber)
	in.Phone = strings.TrimSpace(in.Phone)

	checkRequiredText(v, "name", in.Name, maxNameRunes)
	checkEmail(v, in.Email)
	checkPassword(v, in.Password)
	if in.Department == "" {
		v.Add("department", "department is required")
	}
	checkSemester(v, &in.Semester)
	if in.RollNumber == "" {
		v.Add("roll_number", "roll number is required")
	}
	if in.Phone == "" {
		v.Add("phone", "phone is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleStudent,
		Department:   in.Department,
		Semester:     in.Semester,
		RollNumber:   in.RollNumber,
		Phone:        in.Phone,
		Hostel:       trimPtr(in.Hostel),
		Avatar:       trimPtr(in.Avatar),
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.session(u)
}

// Signin checks the credentials and returns a fresh session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, email, password string) (*Session, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if u.IsSuspended {
		return nil, ErrAccountSuspended
	}
	return s.session(u)
}

// Resolve maps a bearer token to the current state of its user. Tokens
// for deleted accounts are invalid; suspended accounts are forbidden.
func (s *AuthService) Resolve(ctx context.Context, token string) (Actor, error) {
	claims, err := s.Tokens.Validate(token)
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	u, err := repo.GetUser(ctx, s.DB, claims.UserID())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Actor{}, ErrInvalidToken
		}
		return Actor{}, err
	}
	if u.IsSuspended {
		return Actor{}, ErrAccountSuspended
	}
	// Role comes from the store so a demotion applies immediately.
	return Actor{ID: u.ID, Role: u.Role}, nil
}

// Me returns the caller's own account.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, actor.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Profile returns the public summary of user id.
func (s *AuthService) Profile(ctx context.Context, id string) (*domain.UserSummary, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	sum := u.Summary()
	return &sum, nil
}

// UpdateProfile applies p to the caller's account. Email, role and rating
// are not editable here.
func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, p ProfilePatch) (*domain.User, error) {
	v := &ValidationError{}
	fields := map[string]any{}
	if p.Name != nil {
		n := normalizeText(*p.Name)
		checkRequiredText(v, "name", n, maxNameRunes)
		fields["name"] = n
	}
	if p.Department != nil {
		d := domain.NormalizeDepartment(*p.Department)
		if d == "" {
			v.Add("department", "department is required")
		}
		fields["department"] = d
	}
	if p.Semester != nil {
		checkSemester(v, p.Semester)
		fields["semester"] = *p.Semester
	}
	if p.Phone != nil {
		ph := strings.TrimSpace(*p.Phone)
		if ph == "" {
			v.Add("phone", "phone is required")
		}
		fields["phone"] = ph
	}
	if p.Hostel != nil {
		fields["hostel"] = trimPtr(p.Hostel)
	}
	if p.Avatar != nil {
		fields["avatar"] = trimPtr(p.Avatar)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := repo.UpdateUserFields(ctx, s.DB, actor.ID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Me(ctx, actor)
}

// BootstrapAdmin ensures an admin account exists for email. An existing
// account with that email is promoted; its password is left alone.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	switch {
	case err == nil:
		if u.Role == domain.RoleAdmin {
			return nil
		}
		log.Ctx(ctx).Info().Str("user_id", u.ID).Msg("promoting existing account to admin")
		return repo.UpdateUserFields(ctx, s.DB, u.ID, map[string]any{"role": domain.RoleAdmin})
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return err
	}
	admin := &domain.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Department:   "ADMIN",
		Semester:     1,
		RollNumber:   "admin",
		Phone:        "-",
		IsVerified:   true,
	}
	if err := repo.CreateUser(ctx, s.DB, admin); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return err
	}
	log.Ctx(ctx).Info().Str("user_id", admin.ID).Msg("bootstrap admin created")
	return nil
}

func (s *AuthService) session(u *domain.User) (*Session, error) {
	tok, exp, err := s.Tokens.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func checkEmail(v *ValidationError, email string) {
	if email == "" {
		v.Add("email", "email is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "email is not valid")
	}
}

func checkPassword(v *ValidationError, pw string) {
	switch {
	case len(pw) < minPasswordLen:
		v.Add("password", "password must be at least 8 characters")
	case len(pw) > maxPasswordLen:
		v.Add("password", "password must be at most 72 bytes")
	}
}
