// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account provides the HTTP delivery layer for account administration.

# Security

Every endpoint in this package requires the users.manage permission, enforced
by the RequirePermission middleware.
*/
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/foundry/internal/platform/middleware"
	requestutil "github.com/taibuivan/foundry/internal/platform/request"
	"github.com/taibuivan/foundry/internal/platform/respond"
	"github.com/taibuivan/foundry/internal/platform/sec"
	"github.com/taibuivan/foundry/internal/platform/validate"
	"github.com/taibuivan/foundry/internal/users/auth"
)

// Handler implements the HTTP layer for account administration.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the administrative endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequirePermission(PermissionManageUsers))

	// Accounts
	router.Post("/users", handler.createUser)
	router.Get("/users/{username}", handler.describeUser)
	router.Put("/users/{username}/password", handler.setPassword)
	router.Delete("/users/{username}/sessions", handler.revokeSessions)

	// Group Membership
	router.Put("/users/{username}/groups/{group}", handler.addToGroup)
	router.Delete("/users/{username}/groups/{group}", handler.removeFromGroup)

	// Permission Grants
	router.Put("/groups/{group}/permissions/{permission}", handler.grantPermission)
	router.Delete("/groups/{group}/permissions/{permission}", handler.revokePermission)

	return router
}

// # Account Endpoints

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func viewOf(user *auth.User) userView {
	return userView{ID: user.ID, Username: user.Username}
}

/*
POST /api/v1/admin/users.

Request:
  - body: createUserRequest

Response:
  - 201: userView
  - 400: VALIDATION_ERROR
  - 409: CONFLICT: Username taken
*/
func (handler *Handler) createUser(writer http.ResponseWriter, request *http.Request) {
	var input createUserRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.accountService.CreateUser(request.Context(), input.Username, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, viewOf(user))
}

/*
GET /api/v1/admin/users/{username}.

Response:
  - 200: Summary
  - 404: NOT_FOUND
*/
func (handler *Handler) describeUser(writer http.ResponseWriter, request *http.Request) {
	summary, err := handler.accountService.Describe(request.Context(), requestutil.Param(request, FieldUsername))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, summary)
}

/*
PUT /api/v1/admin/users/{username}/password.

Description: Resets the password and signs the user out everywhere.

Response:
  - 200: userView
  - 400: VALIDATION_ERROR
  - 404: NOT_FOUND
*/
func (handler *Handler) setPassword(writer http.ResponseWriter, request *http.Request) {
	var input setPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.accountService.SetPassword(request.Context(), requestutil.Param(request, FieldUsername), input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWithMessage(writer, viewOf(user), "Password reset; all sessions were revoked.")
}

// revokeSessions handles DELETE /api/v1/admin/users/{username}/sessions.
func (handler *Handler) revokeSessions(writer http.ResponseWriter, request *http.Request) {
	deleted, err := handler.accountService.RevokeSessions(request.Context(), requestutil.Param(request, FieldUsername))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int64{auth.FieldDeleted: deleted})
}

// # Membership & Grant Endpoints

func (handler *Handler) addToGroup(writer http.ResponseWriter, request *http.Request) {
	err := handler.accountService.AddToGroup(request.Context(),
		requestutil.Param(request, FieldUsername),
		requestutil.Param(request, FieldGroup),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) removeFromGroup(writer http.ResponseWriter, request *http.Request) {
	err := handler.accountService.RemoveFromGroup(request.Context(),
		requestutil.Param(request, FieldUsername),
		requestutil.Param(request, FieldGroup),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) grantPermission(writer http.ResponseWriter, request *http.Request) {
	err := handler.accountService.GrantPermission(request.Context(),
		requestutil.Param(request, FieldGroup),
		sec.Permission(requestutil.Param(request, FieldPermission)),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) revokePermission(writer http.ResponseWriter, request *http.Request) {
	err := handler.accountService.RevokePermission(request.Context(),
		requestutil.Param(request, FieldGroup),
		sec.Permission(requestutil.Param(request, FieldPermission)),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
