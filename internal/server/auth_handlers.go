package server

import (
	"devsnippet/internal/models"
	"devsnippet/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.setSessionCookie(c, res.Token)
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.setSessionCookie(c, res.Token)
	return c.JSON(res)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.authService.Me(c.UserContext(), actor(c).ID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PUT /api/auth/profile
// @Summary Update own profile
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.UpdateOwnProfile(c.UserContext(), actor(c), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}

// UploadAvatar handles POST /api/auth/upload-avatar
// @Summary Set avatar
// @Description Store an avatar the client already uploaded to the media delegate
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{url=string,publicId=string} true "Uploaded asset"
// @Success 200 {object} object{url=string,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/upload-avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	var req struct {
		URL      string `json:"url"`
		PublicID string `json:"publicId"`
	}
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userService.SetAvatar(c.UserContext(), actor(c), req.URL, req.PublicID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"url": user.ProfilePic, "user": user})
}

// GetPublicProfile handles GET /api/auth/user/:username
// @Summary Public profile
// @Tags auth
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/user/{username} [get]
func (s *Server) GetPublicProfile(c *fiber.Ctx) error {
	profile, err := s.userService.PublicProfile(c.UserContext(), c.Params("username"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}
