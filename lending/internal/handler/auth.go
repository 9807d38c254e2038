package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mkayfour/school-lending/lending/internal/model"
)

// Signup godoc
// @Summary register a user
// @Tags auth
// @Accept json
// @Produce json
// @Param body body model.SignupRequest true "user"
// @Success 201 {object} model.SignupResponse
// @Failure 409 {object} echo.HTTPError
// @Router /api/v1/auth/signup [post]
func (h *Handler) Signup(c echo.Context) error {
	var req model.SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.identitySvc.Signup(c.Request().Context(), req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary exchange credentials for a token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body model.LoginRequest true "credentials"
// @Success 200 {object} model.LoginResponse
// @Failure 401 {object} echo.HTTPError
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.identitySvc.Login(c.Request().Context(), req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, resp)
}
