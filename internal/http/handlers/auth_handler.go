// Auth and profile HTTP handlers.
//
//   - POST /auth/signup
//   - POST /auth/signin
//   - GET  /auth/me
//   - PUT  /auth/profile
//   - GET  /users/{id}
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/services"
)

// SignupRequest is the JSON payload for creating an account. Field rules
// are checked by the service so every violation is reported at once.
type SignupRequest struct {
	Name       string  `json:"name"        example:"Asha Rao"`
	Email      string  `json:"email"       example:"asha@campus.edu"`
	Password   string  `json:"password"    example:"correct-horse"`
	Department string  `json:"department"  example:"CSE"`
	Semester   int     `json:"semester"    example:"5"`
	RollNumber string  `json:"roll_number" example:"21CS042"`
	Phone      string  `json:"phone"       example:"212-555-1212"`
	Hostel     *string `json:"hostel,omitempty"  example:"H4"`
	Avatar     *string `json:"avatar,omitempty"  example:"/uploads/2f1c.jpg"`
}

// SigninRequest is the JSON payload for signing in.
type SigninRequest struct {
	Email    string `json:"email"    binding:"required" example:"asha@campus.edu"`
	Password string `json:"password" binding:"required" example:"correct-horse"`
}

// UpdateProfileRequest is the JSON payload for editing the caller's profile.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	Semester   *int    `json:"semester,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Hostel     *string `json:"hostel,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
}

// SessionResponse carries a bearer token and the signed-in user.
type SessionResponse struct {
	Token     string       `json:"token"      example:"eyJhbGciOiJIUzI1NiIs..."`
	TokenType string       `json:"token_type" example:"Bearer"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

func sessionResponse(s *services.Session) SessionResponse {
	return SessionResponse{Token: s.Token, TokenType: "Bearer", ExpiresAt: s.ExpiresAt, User: s.User}
}

// Signup godoc
// @ID          signup
// @Summary     Create an account
// @Description Registers a student account and returns a bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SignupRequest  true  "Account details"
// @Success     201   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Department: req.Department,
		Semester:   req.Semester,
		RollNumber: req.RollNumber,
		Phone:      req.Phone,
		Hostel:     req.Hostel,
		Avatar:     req.Avatar,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, sessionResponse(sess))
}

// Signin godoc
// @ID          signin
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SigninRequest  true  "Credentials"
// @Success     200   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     403   {object}  handlers.ErrorResponse  "Account suspended"
// @Router      /auth/signin [post]
func (h *Handlers) Signin(c *gin.Context) {
	var req SigninRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.Signin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sessionResponse(sess))
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.auth.Me(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the caller's profile
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.auth.UpdateProfile(c.Request.Context(), actor(c), services.ProfilePatch{
		Name:       req.Name,
		Department: req.Department,
		Semester:   req.Semester,
		Phone:      req.Phone,
		Hostel:     req.Hostel,
		Avatar:     req.Avatar,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// GetUser godoc
// @ID          getUser
// @Summary     Public profile
// @Description Returns a user's public summary: name, department, avatar and rating.
// @Tags        Users
// @Produce     json
// @Param       id   path      string  true  "User ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.UserSummary
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	u, err := h.auth.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
