package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
)

type CreateUserRequestSuite struct {
	suite.Suite
}

func TestCreateUserRequestSuite(t *testing.T) {
	suite.Run(t, new(CreateUserRequestSuite))
}

func (s *CreateUserRequestSuite) validRequest() *CreateUserRequest {
	return &CreateUserRequest{
		Email:           " Jane.Doe@Example.com ",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	}
}

func (s *CreateUserRequestSuite) TestNormalize() {
	req := s.validRequest()
	req.Normalize()

	s.Equal("jane.doe@example.com", req.Email)
	s.Equal("jane.doe@example.com", req.Username)
	s.Equal("user", req.Role)
}

func (s *CreateUserRequestSuite) TestNormalizeShortensLongEmailUsername() {
	domain := strings.Repeat("b", 50) + ".example.com"
	first := &CreateUserRequest{
		Email:           strings.Repeat("a", 60) + "@" + domain,
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	}
	second := &CreateUserRequest{
		Email:           strings.Repeat("a", 59) + "c@" + domain,
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	}
	first.Normalize()
	second.Normalize()

	s.Require().NoError(first.Validate())
	s.Len(first.Username, maxUsernameLength)
	s.True(strings.HasPrefix(first.Username, "aaaa"))
	s.NotEqual(first.Username, second.Username)

	explicit := &CreateUserRequest{Email: first.Email, Username: "short"}
	explicit.Normalize()
	s.Equal("short", explicit.Username)
}

func (s *CreateUserRequestSuite) TestValidation() {
	s.Run("valid request passes", func() {
		req := s.validRequest()
		req.Normalize()
		s.NoError(req.Validate())
	})

	s.Run("nil request", func() {
		var req *CreateUserRequest
		s.True(dErrors.HasCode(req.Validate(), dErrors.CodeBadRequest))
	})

	cases := map[string]func(r *CreateUserRequest){
		"missing email":      func(r *CreateUserRequest) { r.Email = "" },
		"bad email":          func(r *CreateUserRequest) { r.Email = "not-an-email" },
		"missing password":   func(r *CreateUserRequest) { r.Password = "" },
		"short password":     func(r *CreateUserRequest) { r.Password, r.PasswordConfirm = "short", "short" },
		"mismatched confirm": func(r *CreateUserRequest) { r.PasswordConfirm = "different-pass" },
		"unknown role":       func(r *CreateUserRequest) { r.Role = "wizard" },
		"oversized phone":    func(r *CreateUserRequest) { p := strings.Repeat("1", 21); r.Phone = &p },
		"negative age":       func(r *CreateUserRequest) { a := int16(-1); r.Age = &a },
		"oversized password": func(r *CreateUserRequest) { r.Password = strings.Repeat("x", 73) },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			req := s.validRequest()
			req.Normalize()
			mutate(req)
			err := req.Validate()
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), err.Error())
		})
	}
}

func (s *CreateUserRequestSuite) TestNewUser() {
	req := s.validRequest()
	req.Normalize()
	inactive := false
	req.IsActive = &inactive

	u := req.NewUser(id.RoleAdmin, "hashed")
	s.Equal(id.RoleAdmin, u.Role)
	s.Equal("hashed", u.HashedPassword)
	s.False(u.IsActive)
	s.False(u.IsSuperuser)
	s.Require().NotNil(u.FullName)
	s.Equal("Jane Doe", *u.FullName)
}

func TestUpdateUserRequest(t *testing.T) {
	suite.Run(t, new(UpdateUserRequestSuite))
}

type UpdateUserRequestSuite struct {
	suite.Suite
}

func (s *UpdateUserRequestSuite) TestApplyOnlySuppliedFields() {
	name := "Old Name"
	u := &User{ID: 7, Email: "old@example.com", Username: "old", Role: id.RoleUser, FullName: &name, IsActive: true, HashedPassword: "h"}

	newEmail := " NEW@example.com "
	active := false
	req := &UpdateUserRequest{Email: &newEmail, IsActive: &active}
	req.Normalize()
	s.Require().NoError(req.Validate())
	req.ApplyTo(u, "")

	s.Equal("new@example.com", u.Email)
	s.Equal("old", u.Username)
	s.Equal(id.RoleUser, u.Role)
	s.Equal("Old Name", *u.FullName)
	s.False(u.IsActive)
	s.Equal("h", u.HashedPassword)
}

func (s *UpdateUserRequestSuite) TestValidation() {
	empty := ""
	s.True(dErrors.HasCode((&UpdateUserRequest{Username: &empty}).Validate(), dErrors.CodeValidation))

	role := "root"
	s.True(dErrors.HasCode((&UpdateUserRequest{Role: &role}).Validate(), dErrors.CodeValidation))

	s.NoError((&UpdateUserRequest{}).Validate())
}

func TestUpdateMeRequest(t *testing.T) {
	suite.Run(t, new(UpdateMeRequestSuite))
}

type UpdateMeRequestSuite struct {
	suite.Suite
}

func (s *UpdateMeRequestSuite) TestEmptyValuesAreNotSupplied() {
	e, p := "  ", ""
	req := &UpdateMeRequest{Email: &e, Password: &p}
	req.Normalize()
	s.Nil(req.Email)
	s.Nil(req.Password)
	s.NoError(req.Validate())
}

func (s *UpdateMeRequestSuite) TestNormalizesEmail() {
	e := " Me@Example.com"
	req := &UpdateMeRequest{Email: &e}
	req.Normalize()
	s.Require().NotNil(req.Email)
	s.Equal("me@example.com", *req.Email)
	s.Nil(req.Password)
}

func (s *UpdateMeRequestSuite) TestRejectsShortPassword() {
	p := "short"
	req := &UpdateMeRequest{Password: &p}
	req.Normalize()
	s.True(dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
