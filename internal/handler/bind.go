package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

const maxIssueBody = 64 << 10

// BindHandler handles the chat binding sign-in flow: issue, claim, confirm
// and revoke.
type BindHandler struct {
	relay    *service.RelayVerifier
	requests *service.BindRequestService
	bindings *service.ChatBindingService
	guard    *service.GuardService
}

// NewBindHandler creates a new BindHandler.
func NewBindHandler(relay *service.RelayVerifier, requests *service.BindRequestService, bindings *service.ChatBindingService, guard *service.GuardService) *BindHandler {
	return &BindHandler{relay: relay, requests: requests, bindings: bindings, guard: guard}
}

// Issue handles POST /chat-bind-requests. The route is public because no
// binding exists yet for a chat that is signing in; trust comes from the
// relay signature alone, verified over the raw body before parsing.
func (h *BindHandler) Issue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIssueBody))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read body"))
		return
	}
	if err := h.relay.Verify(body, r.Header.Get("X-Relay-Signature")); err != nil {
		Error(w, err)
		return
	}

	var req domain.IssueBindRequestPayload
	if err := json.Unmarshal(body, &req); err != nil {
		Error(w, domain.ErrBadRequest("invalid JSON body"))
		return
	}
	if err := validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	resp, err := h.requests.Issue(r.Context(), req.Platform, req.ChatID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

// Claim handles POST /chat-bind-requests/{id}/claim.
func (h *BindHandler) Claim(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid request id"))
		return
	}

	if err := h.requests.Claim(r.Context(), id, auth.UserID); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"claimed": true})
}

// Accept handles POST /chat-bindings: the confirm step of the flow.
func (h *BindHandler) Accept(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}

	var req domain.AcceptBindingPayload
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if _, err := h.guard.RequireOwner(r.Context(), auth, req.GroupID); err != nil {
		Error(w, err)
		return
	}

	binding, err := h.bindings.Confirm(r.Context(), req.RequestID, req.Nonce, auth.UserID, req.GroupID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, binding)
}

// Revoke handles DELETE /chat-bindings/{id}.
func (h *BindHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	auth, err := requireWeb(r)
	if err != nil {
		Error(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid binding id"))
		return
	}

	binding, err := h.bindings.Get(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}
	if _, err := h.guard.RequireOwner(r.Context(), auth, binding.GroupID); err != nil {
		Error(w, err)
		return
	}

	if err := h.bindings.Revoke(r.Context(), id); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// List handles GET /chat-bindings?groupId=.
func (h *BindHandler) List(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		Error(w, err)
		return
	}
	groupID, err := uuid.Parse(r.URL.Query().Get("groupId"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid groupId"))
		return
	}

	if _, err := h.guard.RequireGroup(r.Context(), auth, groupID); err != nil {
		Error(w, err)
		return
	}

	bindings, err := h.bindings.ListByGroup(r.Context(), groupID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, bindings)
}
