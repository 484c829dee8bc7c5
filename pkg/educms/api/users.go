package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/edu-cms/pkg/educms"
)

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a signed bearer token.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *educms.User `json:"user"`
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, "Failed to authenticate", err)
		return
	}
	token, err := h.auth.Issue(user)
	if err != nil {
		h.writeError(w, r, "Failed to issue token", err)
		return
	}
	render.JSON(w, r, TokenResponse{Token: token, User: user})
}

// RegisterUser creates an account. Only an admin caller may choose the role.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req educms.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if caller, ok := callerFromToken(r.Context()); !ok || !caller.IsAdmin() {
		req.Role = educms.RoleUser
	}

	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to register user", err)
		return
	}
	h.logger.Info("Registered user", "user_id", user.ID, "role", user.Role)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), caller.UserID)
	if err != nil {
		h.writeError(w, r, "Failed to get user", err)
		return
	}
	render.JSON(w, r, user)
}

// FavoriteResponse reports the state after a toggle.
type FavoriteResponse struct {
	Result educms.FavoriteResult `json:"result"`
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	kind, ok := educms.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		badRequest(w, r, "invalid kind")
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.ToggleFavorite(r.Context(), caller.UserID, kind, id)
	if err != nil {
		h.writeError(w, r, "Failed to toggle favorite", err)
		return
	}
	render.JSON(w, r, FavoriteResponse{Result: result})
}

func (h *Handler) JoinCourse(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Join(r.Context(), caller.UserID, id); err != nil {
		h.writeError(w, r, "Failed to join course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LeaveCourse(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Leave(r.Context(), caller.UserID, id); err != nil {
		h.writeError(w, r, "Failed to leave course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
