// Package handler exposes the login and user management endpoints over chi.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "rolegate/internal/auth/middleware"
	"rolegate/internal/auth/rbac"
	"rolegate/internal/params"
	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	dErrors "rolegate/pkg/domain-errors"
	"rolegate/pkg/platform/httputil"
	pstrings "rolegate/pkg/platform/strings"
	"rolegate/pkg/requestcontext"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Service is the user orchestrator consumed by the handlers.
type Service interface {
	ListWithRoles(ctx context.Context, actor *models.User, p params.Params, roles []id.Role) ([]*models.User, int, error)
	Get(ctx context.Context, actor *models.User, userID id.UserID) (*models.User, error)
	Create(ctx context.Context, actor *models.User, req *models.CreateUserRequest) (*models.User, error)
	UpdateSelf(ctx context.Context, actor *models.User, req *models.UpdateMeRequest) (*models.User, error)
	Update(ctx context.Context, actor *models.User, userID id.UserID, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, actor *models.User, userID id.UserID) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.AccessToken, error)
}

// Requirements declares the role requirement of each administrative route.
type Requirements struct {
	List   rbac.Requirement
	Get    rbac.Requirement
	Create rbac.Requirement
	Update rbac.Requirement
	Delete rbac.Requirement
}

// DefaultRequirements restricts administrative routes to admins and superusers.
func DefaultRequirements() Requirements {
	admins := []id.Role{id.RoleAdmin, id.RoleSuperuser}
	return Requirements{
		List:   rbac.Require("users:list", admins...),
		Get:    rbac.Require("users:read", admins...),
		Create: rbac.Require("users:create", admins...),
		Update: rbac.Require("users:update", admins...),
		Delete: rbac.Require("users:delete", admins...),
	}
}

// Handler serves the user routes.
type Handler struct {
	svc          Service
	auth         *authmw.Authenticator
	gate         *rbac.Gate
	requirements Requirements
	paramsOpts   []params.Option
	logger       *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRequirements replaces DefaultRequirements.
func WithRequirements(req Requirements) Option {
	return func(h *Handler) {
		h.requirements = req
	}
}

// WithParamsOptions configures admin-grid parsing on list routes.
func WithParamsOptions(opts ...params.Option) Option {
	return func(h *Handler) {
		h.paramsOpts = append(h.paramsOpts, opts...)
	}
}

func New(svc Service, auth *authmw.Authenticator, gate *rbac.Gate, opts ...Option) *Handler {
	h := &Handler{
		svc:          svc,
		auth:         auth,
		gate:         gate,
		requirements: DefaultRequirements(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r, usually under the API prefix.
func (h *Handler) Register(r chi.Router) {
	active := h.auth.Require(authmw.LevelActive)
	superuser := h.auth.Require(authmw.LevelSuperuser)
	roles := func(req rbac.Requirement) func(http.Handler) http.Handler {
		return authmw.RequireRoles(h.gate, req)
	}

	r.Post("/login/access-token", h.handleLogin)

	r.Route("/users", func(r chi.Router) {
		r.With(active, roles(h.requirements.List)).Get("/", h.handleList)
		r.With(superuser, roles(h.requirements.Create)).Post("/", h.handleCreate)
		r.With(active).Get("/me", h.handleGetMe)
		r.With(active).Put("/me", h.handleUpdateMe)
		r.With(active, roles(h.requirements.Get)).Get("/{id}", h.handleGet)
		r.With(superuser, roles(h.requirements.Update)).Put("/{id}", h.handleUpdate)
		r.With(active, roles(h.requirements.Delete)).Delete("/{id}", h.handleDelete)
	})
}

// handleLogin implements the OAuth2 password form: username carries the email.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}

	tok, err := h.svc.Login(ctx, username, password)
	if err != nil {
		h.writeError(ctx, w, "login failed", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p, err := params.FromRequest(r, h.paramsOpts...)
	if err != nil {
		h.writeError(ctx, w, "invalid list parameters", err)
		return
	}
	roles, err := parseRoles(r.URL.Query().Get("roles"))
	if err != nil {
		h.writeError(ctx, w, "invalid role filter", err)
		return
	}

	users, total, err := h.svc.ListWithRoles(ctx, actor, p, roles)
	if err != nil {
		h.writeError(ctx, w, "failed to list users", err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	w.Header().Set(params.ContentRangeHeader, p.ContentRange(len(users), total))
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "invalid create user request", err)
		return
	}

	created, err := h.svc.Create(ctx, actor, &req)
	if err != nil {
		h.writeError(ctx, w, "failed to create user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, created)
}

func (h *Handler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	w.Header().Set(params.ContentRangeHeader, "0-1/1")
	httputil.WriteJSON(w, http.StatusOK, actor)
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req models.UpdateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "invalid update request", err)
		return
	}

	updated, err := h.svc.UpdateSelf(ctx, actor, &req)
	if err != nil {
		h.writeError(ctx, w, "failed to update current user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.svc.Get(ctx, actor, userID)
	if err != nil {
		h.writeError(ctx, w, "failed to get user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "invalid update request", err)
		return
	}

	updated, err := h.svc.Update(ctx, actor, userID, &req)
	if err != nil {
		h.writeError(ctx, w, "failed to update user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	removed, err := h.svc.Delete(ctx, actor, userID)
	if err != nil {
		h.writeError(ctx, w, "failed to delete user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, removed)
}

// actor returns the user resolved by the authentication middleware.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := authmw.CurrentUser(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "user missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return nil, false
	}
	return user, true
}

// writeError logs server-side failures at error and client failures at debug.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.DebugContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}

// decodeJSON decodes a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return nil
}

// parseRoles reads the comma separated roles filter. Empty means no filter;
// repeated and blank entries are ignored.
func parseRoles(raw string) ([]id.Role, error) {
	names := pstrings.SplitList(raw)
	if len(names) == 0 {
		return nil, nil
	}
	set, err := id.ParseRoleSet(names)
	if err != nil {
		return nil, err
	}
	return set, nil
}
