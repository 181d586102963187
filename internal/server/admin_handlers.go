package server

import (
	"devsnippet/internal/models"
	"devsnippet/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AdminDashboard handles GET /api/admin/dashboard
// @Summary Dashboard
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Dashboard
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/dashboard [get]
func (s *Server) AdminDashboard(c *fiber.Ctx) error {
	dash, err := s.adminService.Dashboard(c.UserContext(), actor(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(dash)
}

// AdminListUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	users, err := s.adminService.ListUsers(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(users)
}

// AdminGetUser handles GET /api/admin/users/:id
// @Summary Get user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id} [get]
func (s *Server) AdminGetUser(c *fiber.Ctx) error {
	detail, err := s.adminService.GetUser(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(detail)
}

// AdminUpdateUser handles PUT /api/admin/users/:id
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body service.AdminUpdateUserInput true "Fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users/{id} [put]
func (s *Server) AdminUpdateUser(c *fiber.Ctx) error {
	var req service.AdminUpdateUserInput
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.adminService.UpdateUser(c.UserContext(), actor(c), c.Params("id"), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(user)
}

// AdminDeleteUser handles DELETE /api/admin/users/:id
// @Summary Delete user
// @Description Removes the account, its posts and its likes
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/users/{id} [delete]
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	if err := s.adminService.DeleteUser(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User and all their posts deleted successfully"})
}
