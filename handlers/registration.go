// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbox/flow"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
)

type RegistrationHandler struct {
	reg *flow.Registrar
}

func NewRegistrationHandler(reg *flow.Registrar) *RegistrationHandler {
	return &RegistrationHandler{reg: reg}
}

// Start handles POST /register
func (h *RegistrationHandler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reg.Start(r.Context())
	if err != nil {
		writeError(w, err, "start registration")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// Status handles GET /register/{flow}
func (h *RegistrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reg.Status(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "registration status")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Consent handles POST /register/{flow}/consent
func (h *RegistrationHandler) Consent(w http.ResponseWriter, r *http.Request) {
	var req models.ConsentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.reg.Consent(r.Context(), r.PathValue("flow"), req)
	if err != nil {
		writeError(w, err, "consent")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Identifier handles POST /register/{flow}/identifier
func (h *RegistrationHandler) Identifier(w http.ResponseWriter, r *http.Request) {
	var req models.IdentifierRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.MatricNumber == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "matric_number is required")
		return
	}

	resp, err := h.reg.Identify(r.Context(), r.PathValue("flow"), req.MatricNumber)
	if err != nil {
		writeError(w, err, "identify")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Contact handles POST /register/{flow}/contact
func (h *RegistrationHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email is required")
		return
	}

	resp, err := h.reg.Contact(r.Context(), r.PathValue("flow"), req.Email)
	if err != nil {
		writeError(w, err, "contact")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Method handles POST /register/{flow}/method
func (h *RegistrationHandler) Method(w http.ResponseWriter, r *http.Request) {
	var req models.MethodRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.reg.ChooseMethod(r.Context(), r.PathValue("flow"), req)
	if err != nil {
		writeError(w, err, "choose registration method")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// ResendCode handles POST /register/{flow}/resend-code
func (h *RegistrationHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reg.ResendCode(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "resend registration code")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// VerifyCode handles POST /register/{flow}/verify-code
func (h *RegistrationHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Code == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "code is required")
		return
	}

	resp, err := h.reg.VerifyCode(r.Context(), r.PathValue("flow"), req.Code)
	if err != nil {
		writeError(w, err, "verify registration code")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// Credential handles POST /register/{flow}/credential
func (h *RegistrationHandler) Credential(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Attestation == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "attestation is required")
		return
	}

	resp, err := h.reg.FinishCredential(r.Context(), r.PathValue("flow"), *req.Attestation)
	if err != nil {
		writeError(w, err, "register credential")
		return
	}

	// A fallback to code verification has no voter yet
	status := http.StatusCreated
	if resp.Voter == nil {
		status = http.StatusOK
	}
	middleware.JSONResponse(w, status, resp)
}

// Complete handles POST /register/{flow}/complete
func (h *RegistrationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reg.Complete(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "complete registration")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// StartOver handles POST /register/{flow}/start-over
func (h *RegistrationHandler) StartOver(w http.ResponseWriter, r *http.Request) {
	resp, err := h.reg.StartOver(r.Context(), r.PathValue("flow"))
	if err != nil {
		writeError(w, err, "start over")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
