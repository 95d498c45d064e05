package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/email"
)

const (
	maxEmailLength    = 254
	maxUsernameLength = 64
	maxNameLength     = 255
	maxPhoneLength    = 20
	maxAvatarLength   = 2048
	maxPasswordLength = 72
	minPasswordLength = 8
	maxAge            = 150
)

// CreateUserRequest is the administrative create payload.
type CreateUserRequest struct {
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
	Role            string  `json:"role"`
	FullName        *string `json:"full_name,omitempty"`
	Age             *int16  `json:"age,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
	IsSuperuser     *bool   `json:"is_superuser,omitempty"`
}

// Normalize lowercases the email and fills defaults: the username falls back to
// the email (shortened by defaultUsername when too long) and the role to "user".
func (r *CreateUserRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = email.Normalize(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		r.Username = defaultUsername(r.Email)
	}
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	if r.Role == "" {
		r.Role = string(id.RoleUser)
	}
	r.FullName = trimOptional(r.FullName)
	r.Phone = trimOptional(r.Phone)
	r.Avatar = trimOptional(r.Avatar)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if err := validateSizes(r.Email, r.Username, r.Password, r.FullName, r.Phone, r.Avatar); err != nil {
		return err
	}

	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}

	if err := email.Validate(r.Email); err != nil {
		return err
	}
	if _, err := id.ParseRole(r.Role); err != nil {
		return err
	}

	if len(r.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	if r.Password != r.PasswordConfirm {
		return dErrors.New(dErrors.CodeValidation, "passwords do not match")
	}
	return validateAge(r.Age)
}

// NewUser builds the record to persist. Role must already be validated against
// the deployment's enabled roles.
func (r *CreateUserRequest) NewUser(role id.Role, hashedPassword string) *User {
	u := &User{
		Email:          r.Email,
		Username:       r.Username,
		Role:           role,
		FullName:       r.FullName,
		Age:            r.Age,
		Phone:          r.Phone,
		Avatar:         r.Avatar,
		IsActive:       true,
		HashedPassword: hashedPassword,
	}
	if u.FullName == nil {
		name := email.DeriveFullName(r.Email)
		u.FullName = &name
	}
	if r.IsActive != nil {
		u.IsActive = *r.IsActive
	}
	if r.IsSuperuser != nil {
		u.IsSuperuser = *r.IsSuperuser
	}
	return u.Clone()
}

// UpdateUserRequest is the administrative partial update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	Role        *string `json:"role,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	Age         *int16  `json:"age,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

func (r *UpdateUserRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Email != nil {
		e := email.Normalize(*r.Email)
		r.Email = &e
	}
	r.Username = trimOptional(r.Username)
	if r.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*r.Role))
		r.Role = &role
	}
	r.FullName = trimOptional(r.FullName)
	r.Phone = trimOptional(r.Phone)
	r.Avatar = trimOptional(r.Avatar)
	r.Password = nonEmpty(r.Password)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *UpdateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	if err := validateSizes(deref(r.Email), deref(r.Username), deref(r.Password), r.FullName, r.Phone, r.Avatar); err != nil {
		return err
	}

	if r.Email != nil {
		if err := email.Validate(*r.Email); err != nil {
			return err
		}
	}
	if r.Username != nil && *r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username cannot be empty")
	}
	if r.Role != nil {
		if _, err := id.ParseRole(*r.Role); err != nil {
			return err
		}
	}
	if r.Password != nil && len(*r.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	return validateAge(r.Age)
}

// ApplyTo copies every supplied field except the password onto u.
func (r *UpdateUserRequest) ApplyTo(u *User, role id.Role) {
	if r.Email != nil {
		u.Email = *r.Email
	}
	if r.Username != nil {
		u.Username = *r.Username
	}
	if r.Role != nil {
		u.Role = role
	}
	if r.FullName != nil {
		u.FullName = clonePtr(r.FullName)
	}
	if r.Age != nil {
		u.Age = clonePtr(r.Age)
	}
	if r.Phone != nil {
		u.Phone = clonePtr(r.Phone)
	}
	if r.Avatar != nil {
		u.Avatar = clonePtr(r.Avatar)
	}
	if r.IsActive != nil {
		u.IsActive = *r.IsActive
	}
	if r.IsSuperuser != nil {
		u.IsSuperuser = *r.IsSuperuser
	}
}

// UpdateMeRequest is the self-service update. Only email and password may change;
// empty values count as not supplied.
type UpdateMeRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (r *UpdateMeRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = nonEmpty(r.Email)
	if r.Email != nil {
		e := email.Normalize(*r.Email)
		r.Email = nonEmpty(&e)
	}
	r.Password = nonEmpty(r.Password)
}

func (r *UpdateMeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateSizes(deref(r.Email), "", deref(r.Password), nil, nil, nil); err != nil {
		return err
	}
	if r.Email != nil {
		if err := email.Validate(*r.Email); err != nil {
			return err
		}
	}
	if r.Password != nil && len(*r.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// defaultUsername is emailAddr when it fits the username limit. Longer
// addresses keep their leading characters plus a hash suffix of the whole
// address, so distinct emails still get distinct usernames.
func defaultUsername(emailAddr string) string {
	if len(emailAddr) <= maxUsernameLength {
		return emailAddr
	}
	sum := sha256.Sum256([]byte(emailAddr))
	suffix := "-" + hex.EncodeToString(sum[:4])
	return emailAddr[:maxUsernameLength-len(suffix)] + suffix
}

func validateSizes(emailAddr, username, password string, fullName, phone, avatar *string) error {
	if len(emailAddr) > maxEmailLength {
		return dErrors.Newf(dErrors.CodeValidation, "email must be %d characters or less", maxEmailLength)
	}
	if len(username) > maxUsernameLength {
		return dErrors.Newf(dErrors.CodeValidation, "username must be %d characters or less", maxUsernameLength)
	}
	if len(password) > maxPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be %d bytes or less", maxPasswordLength)
	}
	if len(deref(fullName)) > maxNameLength {
		return dErrors.Newf(dErrors.CodeValidation, "full_name must be %d characters or less", maxNameLength)
	}
	if len(deref(phone)) > maxPhoneLength {
		return dErrors.Newf(dErrors.CodeValidation, "phone must be %d characters or less", maxPhoneLength)
	}
	if len(deref(avatar)) > maxAvatarLength {
		return dErrors.Newf(dErrors.CodeValidation, "avatar must be %d characters or less", maxAvatarLength)
	}
	return nil
}

func validateAge(age *int16) error {
	if age != nil && (*age < 0 || *age > maxAge) {
		return dErrors.Newf(dErrors.CodeValidation, "age must be between 0 and %d", maxAge)
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
