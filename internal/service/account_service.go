package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"waterz/internal/backend"
	"waterz/internal/domain"
	"waterz/internal/models"
)

// AccountService passes sign-in, sign-up and profile calls through to the backend.
// The gateway never stores session tokens; callers keep the token they get back.
type AccountService struct {
	backend  AccountBackend
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewAccountService(backend AccountBackend, logger *zerolog.Logger) *AccountService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &AccountService{backend: backend, validate: v, logger: logger}
}

func (s *AccountService) SignIn(ctx context.Context, creds models.Credentials) (*models.SignInResult, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	creds.Role = roleOrCustomer(creds.Role)
	if err := s.check(creds); err != nil {
		return nil, err
	}

	res, err := s.backend.SignIn(ctx, creds)
	if err != nil {
		s.logger.Info().Err(err).Str("email", creds.Email).Msg("Sign-in failed")
		return nil, err
	}
	s.logger.Info().
		Str("user_id", res.User.ID).
		Str("role", res.User.Role).
		Msg("User signed in")
	return res, nil
}

// SignUp registers a customer. The result token is only good for VerifyOTP.
func (s *AccountService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = roleOrCustomer(req.Role)
	if err := s.check(req); err != nil {
		return nil, err
	}
	if !strongPassword(req.Password) {
		return nil, domain.NewValidationError("password", "password must contain an uppercase letter and a special character")
	}

	res, err := s.backend.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("email", req.Email).Msg("Customer signed up, awaiting OTP")
	return res, nil
}

func (s *AccountService) GenerateOTP(ctx context.Context, req models.OTPRequest) (*models.Ack, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.backend.GenerateOTP(ctx, req)
}

func (s *AccountService) VerifyOTP(ctx context.Context, req models.OTPVerification) (*models.Ack, error) {
	req.OTP = strings.TrimSpace(req.OTP)
	req.Role = roleOrCustomer(req.Role)
	if err := s.check(req); err != nil {
		return nil, err
	}
	ack, err := s.backend.VerifyOTP(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Msg("OTP verified")
	return ack, nil
}

func (s *AccountService) Logout(ctx context.Context, auth backend.AuthContext) error {
	if auth.IsAnonymous() {
		return domain.ErrNotSignedIn
	}
	if err := s.backend.Logout(ctx, auth); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", auth.Subject()).Msg("User logged out")
	return nil
}

func (s *AccountService) Profile(ctx context.Context, auth backend.AuthContext) (*models.User, error) {
	if auth.IsAnonymous() {
		return nil, domain.ErrNotSignedIn
	}
	return s.backend.Profile(ctx, auth)
}

// UpdateProfile applies the changed fields and returns the fresh profile.
func (s *AccountService) UpdateProfile(ctx context.Context, auth backend.AuthContext, upd models.ProfileUpdate) (*models.User, error) {
	if auth.IsAnonymous() {
		return nil, domain.ErrNotSignedIn
	}
	if upd.Empty() {
		return nil, domain.NewValidationError("profile", "nothing to update")
	}
	for field, v := range map[string]*string{"name": upd.Name, "email": upd.Email, "phone": upd.Phone} {
		if v == nil {
			continue
		}
		*v = strings.TrimSpace(*v)
		if *v == "" {
			return nil, domain.NewValidationError(field, "%s must not be empty", field)
		}
	}
	if err := s.check(upd); err != nil {
		return nil, err
	}

	user, err := s.backend.UpdateProfile(ctx, auth, upd)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.backend.Profile(ctx, auth)
		if err != nil {
			return nil, fmt.Errorf("reload profile: %w", err)
		}
	}
	s.logger.Info().Str("user_id", user.ID).Msg("Profile updated")
	return user, nil
}

// SendQuery forwards a contact-form message; anonymous visitors may send one too.
func (s *AccountService) SendQuery(ctx context.Context, auth backend.AuthContext, q models.ContactQuery) (*models.Ack, error) {
	q.Name = strings.TrimSpace(q.Name)
	q.Email = strings.TrimSpace(q.Email)
	q.Message = strings.TrimSpace(q.Message)
	if err := s.check(q); err != nil {
		return nil, err
	}
	ack, err := s.backend.SendQuery(ctx, auth, q)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", q.Email).Msg("Failed to send contact query")
		return nil, err
	}
	return ack, nil
}

// check turns the first validator failure into a ValidationError named after the JSON field.
func (s *AccountService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(name, "%s is required", name)
	case "email":
		return domain.NewValidationError(name, "%s must be a valid email address", name)
	case "numeric":
		return domain.NewValidationError(name, "%s must contain digits only", name)
	case "min":
		return domain.NewValidationError(name, "%s must be at least %s characters", name, fe.Param())
	case "max":
		return domain.NewValidationError(name, "%s must be at most %s characters", name, fe.Param())
	default:
		return domain.NewValidationError(name, "%s is invalid", name)
	}
}

func roleOrCustomer(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return models.RoleCustomer
	}
	return role
}

func strongPassword(p string) bool {
	var upper, special bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && special
}
