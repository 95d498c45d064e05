package service

import (
	"context"
	"errors"

	"rolegate/internal/audit"
	"rolegate/internal/auth/identity"
	"rolegate/internal/params"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/sentinel"
)

const (
	msgEmailTaken    = "The user with this username already exists in the system."
	msgUsernameTaken = "The username is already taken."
	msgUserNotFound  = "The user does not exist"
)

func requireSuperuser(actor *models.User) error {
	if err := identity.RequireActive(actor); err != nil {
		return err
	}
	return identity.RequireSuperuser(actor)
}

// List returns one page of users and the total matching count.
func (s *Service) List(ctx context.Context, actor *models.User, p params.Params) ([]*models.User, int, error) {
	return s.ListWithRoles(ctx, actor, p, nil)
}

// ListWithRoles is List restricted to users holding one of roles. Empty roles means all.
func (s *Service) ListWithRoles(ctx context.Context, actor *models.User, p params.Params, roles []id.Role) (users []*models.User, total int, err error) {
	ctx, span := s.startSpan(ctx, "users.List", actor)
	defer func() { endSpan(span, err) }()

	if err = identity.RequireActive(actor); err != nil {
		return nil, 0, err
	}
	users, total, err = s.store.List(ctx, p, roles)
	if err != nil {
		return nil, 0, s.storeFailure(ctx, "list", err)
	}
	return users, total, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, actor *models.User, userID id.UserID) (user *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.Get", actor)
	defer func() { endSpan(span, err) }()

	if err = identity.RequireActive(actor); err != nil {
		return nil, err
	}
	user, err = s.store.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, msgUserNotFound)
		}
		return nil, s.storeFailure(ctx, "get", err)
	}
	return user, nil
}

// Create registers a new user. Only active superusers may create users.
func (s *Service) Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (created *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.Create", actor)
	defer func() { endSpan(span, err) }()

	if err = requireSuperuser(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}
	role, err := s.roles.Parse(req.Role)
	if err != nil {
		return nil, err
	}
	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureAvailable(ctx, req.Email, req.Username, 0); err != nil {
			return err
		}
		u, err := s.store.Create(ctx, req.NewUser(role, hashed))
		if err != nil {
			return mapWriteError(err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "create", err)
	}

	s.logAudit(ctx, audit.ActionUserCreated,
		"user_id", created.ID.String(),
		"actor_id", actor.ID.String(),
		"email", created.Email,
	)
	s.incrementMutation("create")
	return created, nil
}

// UpdateSelf changes the caller's own email and/or password. Other fields are untouched.
func (s *Service) UpdateSelf(ctx context.Context, actor *models.User, req *models.UpdateMeRequest) (updated *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.UpdateSelf", actor)
	defer func() { endSpan(span, err) }()

	if err = identity.RequireActive(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}
	var hashed string
	if req.Password != nil {
		if hashed, err = s.hash(*req.Password); err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, actor.ID)
		if err != nil {
			if isNotFound(err) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, msgUserNotFound)
			}
			return err
		}
		if req.Email != nil && *req.Email != current.Email {
			if err := s.ensureAvailable(ctx, *req.Email, "", current.ID); err != nil {
				return err
			}
			current.Email = *req.Email
		}
		if hashed != "" {
			current.HashedPassword = hashed
		}
		u, err := s.store.Update(ctx, current)
		if err != nil {
			return mapWriteError(err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "update_self", err)
	}

	s.invalidate(ctx, updated.ID)
	s.logAudit(ctx, audit.ActionUserSelfUpdated,
		"user_id", updated.ID.String(),
		"password_changed", hashed != "",
	)
	s.incrementMutation("update_self")
	return updated, nil
}

// Update applies a partial administrative update. Only active superusers may update others.
func (s *Service) Update(ctx context.Context, actor *models.User, userID id.UserID, req *models.UpdateUserRequest) (updated *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.Update", actor)
	defer func() { endSpan(span, err) }()

	if err = requireSuperuser(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}
	var role id.Role
	if req.Role != nil {
		if role, err = s.roles.Parse(*req.Role); err != nil {
			return nil, err
		}
	}
	var hashed string
	if req.Password != nil {
		if hashed, err = s.hash(*req.Password); err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.store.FindByID(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "The user with this username does not exist")
			}
			return err
		}
		newEmail, newUsername := "", ""
		if req.Email != nil && *req.Email != target.Email {
			newEmail = *req.Email
		}
		if req.Username != nil && *req.Username != target.Username {
			newUsername = *req.Username
		}
		if err := s.ensureAvailable(ctx, newEmail, newUsername, target.ID); err != nil {
			return err
		}
		req.ApplyTo(target, role)
		if hashed != "" {
			target.HashedPassword = hashed
		}
		u, err := s.store.Update(ctx, target)
		if err != nil {
			return mapWriteError(err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "update", err)
	}

	s.invalidate(ctx, updated.ID)
	s.logAudit(ctx, audit.ActionUserUpdated,
		"user_id", updated.ID.String(),
		"actor_id", actor.ID.String(),
	)
	s.incrementMutation("update")
	return updated, nil
}

// Delete removes a user and returns the removed record. Active users and
// superusers cannot be removed.
func (s *Service) Delete(ctx context.Context, actor *models.User, userID id.UserID) (removed *models.User, err error) {
	ctx, span := s.startSpan(ctx, "users.Delete", actor)
	defer func() { endSpan(span, err) }()

	if err = identity.RequireActive(actor); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		target, err := s.store.FindByID(ctx, userID)
		if err != nil {
			if isNotFound(err) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "Item not found")
			}
			return err
		}
		if err := target.CanDelete(); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, userID); err != nil {
			if isNotFound(err) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "Item not found")
			}
			return err
		}
		removed = target
		return nil
	})
	if err != nil {
		return nil, s.storeFailure(ctx, "delete", err)
	}

	s.invalidate(ctx, removed.ID)
	s.logAudit(ctx, audit.ActionUserDeleted,
		"user_id", removed.ID.String(),
		"actor_id", actor.ID.String(),
		"email", removed.Email,
	)
	s.incrementMutation("delete")
	return removed, nil
}

// ensureAvailable fails with CodeDuplicateResource when emailAddr or username
// belongs to a user other than self. Empty values are skipped.
func (s *Service) ensureAvailable(ctx context.Context, emailAddr, username string, self id.UserID) error {
	if emailAddr != "" {
		existing, err := s.store.FindByEmail(ctx, emailAddr)
		switch {
		case err == nil && existing.ID != self:
			return dErrors.New(dErrors.CodeDuplicateResource, msgEmailTaken)
		case err != nil && !isNotFound(err):
			return err
		}
	}
	if username != "" {
		existing, err := s.store.FindByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != self:
			return dErrors.New(dErrors.CodeDuplicateResource, msgUsernameTaken)
		case err != nil && !isNotFound(err):
			return err
		}
	}
	return nil
}

// mapWriteError turns a unique-constraint race lost at write time into the same
// error the pre-check reports.
func mapWriteError(err error) error {
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return dErrors.Wrap(err, dErrors.CodeDuplicateResource, msgEmailTaken)
	}
	return err
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return hashed, nil
}
