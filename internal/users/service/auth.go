package service

import (
	"context"
	"errors"

	"rolegate/internal/audit"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/email"
	"rolegate/pkg/secrets"
)

const msgIncorrectLogin = "Incorrect email or password"

// dummyPassword is verified against a throwaway hash when the email is unknown
// so both failure paths cost one bcrypt comparison.
const dummyPassword = "rolegate-timing-equalizer"

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords fail identically with CodeBadCredentials; inactive users fail with
// CodeInactiveUser.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (user *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.Authenticate", nil)
	defer func() { endSpan(span, err) }()

	user, err = s.store.FindByEmail(ctx, email.Normalize(emailAddr))
	if err != nil {
		if !isNotFound(err) {
			return nil, s.storeFailure(ctx, "authenticate", err)
		}
		s.equalizeTiming()
		return nil, dErrors.New(dErrors.CodeBadCredentials, msgIncorrectLogin)
	}
	if err = s.hasher.Verify(password, user.HashedPassword); err != nil {
		if errors.Is(err, secrets.ErrMismatch) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadCredentials, msgIncorrectLogin)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeInactiveUser, "Inactive user")
	}
	return user, nil
}

func (s *Service) equalizeTiming() {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(dummyPassword)
	})
	if s.dummyHash != "" {
		_ = s.hasher.Verify(dummyPassword+"x", s.dummyHash)
	}
}

// Login authenticates and issues a bearer access token.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*models.AccessToken, error) {
	if s.issuer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "token issuing is not configured")
	}
	user, err := s.Authenticate(ctx, emailAddr, password)
	if err != nil {
		s.recordLogin("failure")
		s.logAudit(ctx, audit.ActionLoginFailed,
			"email", email.Normalize(emailAddr),
			"reason", string(dErrors.CodeOf(err)),
		)
		return nil, err
	}

	raw, expiresAt, err := s.issuer.Issue(user.ID, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	s.recordLogin("success")
	if s.authMetrics != nil {
		s.authMetrics.IncrementTokensIssued()
	}
	s.logAudit(ctx, audit.ActionLoginSucceeded, "user_id", user.ID.String())
	return &models.AccessToken{AccessToken: raw, TokenType: models.TokenTypeBearer, ExpiresAt: expiresAt}, nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementLogin(outcome)
	}
}

// EnsureSuperuser seeds the first superuser when no user owns emailAddr.
// It reports whether a user was created.
func (s *Service) EnsureSuperuser(ctx context.Context, emailAddr, password string) (bool, error) {
	req := &models.CreateUserRequest{
		Email:           emailAddr,
		Password:        password,
		PasswordConfirm: password,
		Role:            string(s.bootstrapRole()),
		IsSuperuser:     boolPtr(true),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return false, err
	}

	_, err := s.store.FindByEmail(ctx, req.Email)
	if err == nil {
		return false, nil
	}
	if !isNotFound(err) {
		return false, s.storeFailure(ctx, "bootstrap", err)
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return false, err
	}
	var created *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureAvailable(ctx, req.Email, req.Username, 0); err != nil {
			return err
		}
		u, err := s.store.Create(ctx, req.NewUser(id.Role(req.Role), hashed))
		if err != nil {
			return mapWriteError(err)
		}
		created = u
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicateResource) {
			return false, nil
		}
		return false, s.storeFailure(ctx, "bootstrap", err)
	}
	s.logAudit(ctx, audit.ActionUserCreated,
		"user_id", created.ID.String(),
		"email", created.Email,
		"reason", "bootstrap",
	)
	s.incrementMutation("create")
	return true, nil
}

func (s *Service) bootstrapRole() id.Role {
	if s.roles.Contains(id.RoleSuperuser) {
		return id.RoleSuperuser
	}
	if s.roles.Contains(id.RoleAdmin) {
		return id.RoleAdmin
	}
	return s.roles[0]
}

func boolPtr(b bool) *bool {
	return &b
}
