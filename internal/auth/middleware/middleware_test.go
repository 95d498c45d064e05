package middleware

//go:generate mockgen -source=middleware.go -destination=mocks/mocks.go -package=mocks IdentityResolver,RoleBinder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rolegate/internal/auth/middleware/mocks"
	"rolegate/internal/auth/rbac"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/httputil"
	"rolegate/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *mocks.MockIdentityResolver
	binder   *mocks.MockRoleBinder
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockIdentityResolver(s.ctrl)
	s.binder = mocks.NewMockRoleBinder(s.ctrl)
}

func (s *MiddlewareSuite) serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *MiddlewareSuite) decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var body httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func echoUser(s *MiddlewareSuite) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		s.Require().True(ok)
		s.Equal(user.ID, requestcontext.UserID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *MiddlewareSuite) TestRequire() {
	user := &models.User{ID: 11, Role: id.RoleUser, IsActive: true}

	s.Run("missing header is unauthorized", func() {
		h := NewAuthenticator(s.resolver).Require(LevelActive)(echoUser(s))
		rec := s.serve(h, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("Bearer", rec.Header().Get("WWW-Authenticate"))
		s.Equal(string(dErrors.CodeBadCredentials), s.decodeError(rec).Error)
	})

	s.Run("non bearer scheme is unauthorized", func() {
		h := NewAuthenticator(s.resolver).Require(LevelActive)(echoUser(s))
		rec := s.serve(h, "Basic dXNlcjpwYXNz")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("levels select resolver stage", func() {
		s.resolver.EXPECT().CurrentUser(gomock.Any(), "t1").Return(user, nil)
		s.resolver.EXPECT().CurrentActiveUser(gomock.Any(), "t2").Return(user, nil)
		s.resolver.EXPECT().CurrentActiveSuperuser(gomock.Any(), "t3").Return(user, nil)

		a := NewAuthenticator(s.resolver)
		s.Equal(http.StatusNoContent, s.serve(a.Require(LevelAuthenticated)(echoUser(s)), "Bearer t1").Code)
		s.Equal(http.StatusNoContent, s.serve(a.Require(LevelActive)(echoUser(s)), "bearer t2").Code)
		s.Equal(http.StatusNoContent, s.serve(a.Require(LevelSuperuser)(echoUser(s)), "Bearer t3").Code)
	})

	s.Run("resolver errors map to status", func() {
		s.resolver.EXPECT().CurrentActiveUser(gomock.Any(), "inactive").
			Return(nil, dErrors.New(dErrors.CodeInactiveUser, "Inactive user"))
		s.resolver.EXPECT().CurrentActiveSuperuser(gomock.Any(), "regular").
			Return(nil, dErrors.New(dErrors.CodeInsufficientPrivileges, "This user doesn't have enough privileges"))

		a := NewAuthenticator(s.resolver)
		rec := s.serve(a.Require(LevelActive)(echoUser(s)), "Bearer inactive")
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Inactive user", s.decodeError(rec).ErrorDescription)

		rec = s.serve(a.Require(LevelSuperuser)(echoUser(s)), "Bearer regular")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("role binder enriches context", func() {
		s.resolver.EXPECT().CurrentActiveUser(gomock.Any(), "t").Return(user, nil)
		s.binder.EXPECT().Bind(gomock.Any(), user).DoAndReturn(func(ctx context.Context, u *models.User) (context.Context, error) {
			return requestcontext.WithDBRole(ctx, "db_user_11"), nil
		})

		var role string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role = requestcontext.DBRole(r.Context())
		})
		h := NewAuthenticator(s.resolver, WithRoleBinder(s.binder)).Require(LevelActive)(next)
		rec := s.serve(h, "Bearer t")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("db_user_11", role)
	})

	s.Run("role binder failure is a server error", func() {
		s.resolver.EXPECT().CurrentActiveUser(gomock.Any(), "t").Return(user, nil)
		s.binder.EXPECT().Bind(gomock.Any(), user).Return(nil, errors.New("pg down"))

		h := NewAuthenticator(s.resolver, WithRoleBinder(s.binder)).Require(LevelActive)(echoUser(s))
		rec := s.serve(h, "Bearer t")
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Empty(s.decodeError(rec).ErrorDescription)
	})
}

func (s *MiddlewareSuite) TestRequireRoles() {
	req := rbac.Require("users", id.RoleAdmin)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	withUser := func(u *models.User, h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}

	s.Run("enabled gate denies other roles", func() {
		h := withUser(&models.User{ID: 1, Role: id.RoleUser}, RequireRoles(rbac.NewGate(true), req)(ok))
		s.Equal(http.StatusForbidden, s.serve(h, "").Code)
	})

	s.Run("enabled gate admits listed role", func() {
		h := withUser(&models.User{ID: 1, Role: id.RoleAdmin}, RequireRoles(rbac.NewGate(true), req)(ok))
		s.Equal(http.StatusNoContent, s.serve(h, "").Code)
	})

	s.Run("disabled gate admits", func() {
		h := withUser(&models.User{ID: 1, Role: id.RoleUser}, RequireRoles(rbac.NewGate(false), req)(ok))
		s.Equal(http.StatusNoContent, s.serve(h, "").Code)
	})

	s.Run("missing user is unauthorized", func() {
		h := RequireRoles(rbac.NewGate(true), req)(ok)
		s.Equal(http.StatusUnauthorized, s.serve(h, "").Code)
	})
}
