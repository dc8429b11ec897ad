package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marcelsud/assistant-gateway/policy"
)

// authRequest is the identity provider callback body
type authRequest struct {
	UserID      string   `json:"userId"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sessionId"`
}

type authResponse struct {
	Status string `json:"status"`
	Helper string `json:"helper"`
	UserID string `json:"userId"`
}

type roleResponse struct {
	Role           string   `json:"role"`
	Helper         string   `json:"helper"`
	Administrative bool     `json:"administrative"`
	Permissions    []string `json:"permissions"`
}

type rolesResponse struct {
	Roles   []roleResponse `json:"roles"`
	Helpers []string       `json:"helpers"`
}

// postAuthCallback handles POST /auth-callback
func postAuthCallback(authorizer policy.Authorizer, recorder Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "request body must be a JSON object")
			return
		}

		caller := policy.CallerContext{
			UserID:      req.UserID,
			Role:        policy.Role(req.Role),
			Permissions: req.Permissions,
			SessionID:   req.SessionID,
		}
		if err := caller.Validate(); err != nil {
			msg := "invalid caller"
			if errors.Is(err, policy.ErrValidation) {
				msg = err.Error()
			}
			writeError(w, http.StatusBadRequest, "validation_error", msg)
			return
		}

		decision := authorizer.Authorize(r.Context(), caller)
		role := req.Role
		if decision.Reason == policy.ReasonUnknownRole {
			role = "unknown"
		}
		recorder.RecordDecision(role, decision.Outcome.String())

		if !decision.Authorized() {
			writeError(w, http.StatusForbidden, string(decision.Reason), decision.Message)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{
			Status: "success",
			Helper: string(decision.Helper),
			UserID: req.UserID,
		})
	})
}

// getRoles handles GET /roles
func getRoles(table *policy.Table) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := table.Roles()
		resp := rolesResponse{
			Roles:   make([]roleResponse, 0, len(entries)),
			Helpers: make([]string, 0),
		}
		for _, e := range entries {
			perms := e.Permissions
			if perms == nil {
				perms = []string{}
			}
			resp.Roles = append(resp.Roles, roleResponse{
				Role:           string(e.Role),
				Helper:         string(e.Helper),
				Administrative: e.Administrative,
				Permissions:    perms,
			})
		}
		for _, h := range table.Helpers() {
			resp.Helpers = append(resp.Helpers, string(h))
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
