package identity

//go:generate mockgen -source=resolver.go -destination=mocks/mocks.go -package=mocks TokenVerifier,UserFinder

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rolegate/internal/auth/identity/mocks"
	"rolegate/internal/auth/metrics"
	"rolegate/internal/auth/token"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/sentinel"
)

type ResolverSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	verifier *mocks.MockTokenVerifier
	users    *mocks.MockUserFinder
	metrics  *metrics.Metrics
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockTokenVerifier(s.ctrl)
	s.users = mocks.NewMockUserFinder(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.resolver, err = New(s.verifier, s.users, WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func (s *ResolverSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolverSuite) expectUser(u *models.User) {
	s.verifier.EXPECT().Verify("raw").Return(token.Subject{ID: u.ID.String()}, nil)
	s.users.EXPECT().FindByID(gomock.Any(), u.ID).Return(u, nil)
}

func (s *ResolverSuite) TestCurrentUser() {
	ctx := context.Background()

	s.Run("resolves subject to user", func() {
		u := &models.User{ID: 7, Email: "a@example.com", IsActive: true}
		s.expectUser(u)

		got, err := s.resolver.CurrentUser(ctx, "raw")
		s.Require().NoError(err)
		s.Equal(u, got)
	})

	s.Run("token failure is bad credentials", func() {
		s.verifier.EXPECT().Verify("raw").Return(token.Subject{}, dErrors.New(dErrors.CodeBadCredentials, "Could not validate credentials"))

		_, err := s.resolver.CurrentUser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeBadCredentials))
	})

	s.Run("unparseable subject is bad credentials", func() {
		s.verifier.EXPECT().Verify("raw").Return(token.Subject{ID: "not-a-number"}, nil)

		_, err := s.resolver.CurrentUser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeBadCredentials))
	})

	s.Run("unknown user is bad credentials", func() {
		s.verifier.EXPECT().Verify("raw").Return(token.Subject{ID: "99"}, nil)
		s.users.EXPECT().FindByID(gomock.Any(), id.UserID(99)).Return(nil, sentinel.ErrNotFound)

		_, err := s.resolver.CurrentUser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeBadCredentials))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("unknown_user")))
	})

	s.Run("store failure propagates", func() {
		dbErr := errors.New("db down")
		s.verifier.EXPECT().Verify("raw").Return(token.Subject{ID: "5"}, nil)
		s.users.EXPECT().FindByID(gomock.Any(), id.UserID(5)).Return(nil, dbErr)

		_, err := s.resolver.CurrentUser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeStoreFailure))
		s.ErrorIs(err, dbErr)
	})
}

func (s *ResolverSuite) TestCurrentActiveUser() {
	ctx := context.Background()

	s.Run("inactive user rejected", func() {
		s.expectUser(&models.User{ID: 3, IsActive: false})

		_, err := s.resolver.CurrentActiveUser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeInactiveUser))
	})

	s.Run("active user admitted", func() {
		s.expectUser(&models.User{ID: 3, IsActive: true})

		got, err := s.resolver.CurrentActiveUser(ctx, "raw")
		s.Require().NoError(err)
		s.Equal(id.UserID(3), got.ID)
	})
}

func (s *ResolverSuite) TestCurrentActiveSuperuser() {
	ctx := context.Background()

	s.Run("regular user rejected", func() {
		s.expectUser(&models.User{ID: 4, IsActive: true})

		_, err := s.resolver.CurrentActiveSuperuser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPrivileges))
	})

	s.Run("inactive superuser fails the active check first", func() {
		s.expectUser(&models.User{ID: 4, IsActive: false, IsSuperuser: true})

		_, err := s.resolver.CurrentActiveSuperuser(ctx, "raw")
		s.True(dErrors.HasCode(err, dErrors.CodeInactiveUser))
	})

	s.Run("active superuser admitted", func() {
		s.expectUser(&models.User{ID: 4, IsActive: true, IsSuperuser: true})

		got, err := s.resolver.CurrentActiveSuperuser(ctx, "raw")
		s.Require().NoError(err)
		s.True(got.IsSuperuser)
	})
}

func (s *ResolverSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.users)
	s.Error(err)
	_, err = New(s.verifier, nil)
	s.Error(err)
}

func TestGuards(t *testing.T) {
	assert.True(t, dErrors.HasCode(RequireActive(nil), dErrors.CodeInactiveUser))
	assert.NoError(t, RequireActive(&models.User{IsActive: true}))
	assert.True(t, dErrors.HasCode(RequireSuperuser(&models.User{IsActive: true}), dErrors.CodeInsufficientPrivileges))
	assert.NoError(t, RequireSuperuser(&models.User{IsSuperuser: true}))
}
