package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
)

// Service handles credential verification and token issuance.
type Service struct {
	repo   Repository
	cfg    config.JWTConfig
	logger *logging.Logger
}

// NewService creates an auth service.
func NewService(repo Repository, cfg config.JWTConfig, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("component", "auth"),
	}
}

// LoginResult is a successful authentication.
type LoginResult struct {
	Token       string `json:"token"`
	User        *User  `json:"user"`
	HouseholdID string `json:"householdId"`
	Role        Role   `json:"role"`
}

// Login verifies an email/password pair and issues an access token
// scoped to the user's primary household.
//
// All verification failures collapse into ErrInvalidCredentials so the
// response does not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a hash comparison anyway so the unknown-account path
			// is not measurably faster than a wrong password.
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // Timing equalisation only
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	membership, err := s.repo.PrimaryMembership(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, err := GenerateAccessToken(user.ID, membership.HouseholdID, membership.Role, s.cfg.Secret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "household_id", membership.HouseholdID)

	return &LoginResult{
		Token:       token,
		User:        user,
		HouseholdID: membership.HouseholdID,
		Role:        membership.Role,
	}, nil
}

// Register creates a user account with a hashed password. Household
// membership is granted separately; a freshly registered user cannot
// log in until an admin adds them to a household.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// dummyHash is a well-formed Argon2id PHC string that matches no
// password, used to keep the unknown-account login path constant-time.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$Ea6JL9cP2jQvW0sVxkdvFTDPpGCkkVbcZhWdBdLdm2U"
