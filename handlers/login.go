// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbox/flow"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
)

type LoginHandler struct {
	login *flow.Authenticator
}

func NewLoginHandler(login *flow.Authenticator) *LoginHandler {
	return &LoginHandler{login: login}
}

// Start handles POST /login
func (h *LoginHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartLoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.MatricNumber == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "matric_number is required")
		return
	}

	resp, err := h.login.Start(r.Context(), req)
	if err != nil {
		writeError(w, err, "start login")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// Status handles GET /login/{flow}
func (h *LoginHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.login.Status(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "login status")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Method handles POST /login/{flow}/method
func (h *LoginHandler) Method(w http.ResponseWriter, r *http.Request) {
	var req models.MethodRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.login.ChooseMethod(r.Context(), r.PathValue("flow"), req.Method)
	if err != nil {
		writeError(w, err, "choose login method")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// ResendCode handles POST /login/{flow}/resend-code
func (h *LoginHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	resp, err := h.login.ResendCode(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "resend login code")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// VerifyCode handles POST /login/{flow}/verify-code
func (h *LoginHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Code == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "code is required")
		return
	}

	resp, err := h.login.VerifyCode(r.Context(), r.PathValue("flow"), req.Code)
	if err != nil {
		writeError(w, err, "verify login code")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Credential handles POST /login/{flow}/credential
func (h *LoginHandler) Credential(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Assertion == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "assertion is required")
		return
	}

	resp, err := h.login.FinishCredential(r.Context(), r.PathValue("flow"), *req.Assertion)
	if err != nil {
		writeError(w, err, "credential login")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
