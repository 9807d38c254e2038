package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mkayfour/school-lending/lending/internal/model"
)

// truthy accepts 1, true and yes in any case.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ListEquipment godoc
// @Summary search equipment
// @Tags equipment
// @Produce json
// @Param q query string false "name contains"
// @Param category query string false "exact category"
// @Param available query string false "only items with units available (1, true, yes)"
// @Success 200 {array} model.Equipment
// @Router /api/v1/equipment [get]
func (h *Handler) ListEquipment(c echo.Context) error {
	q := model.EquipmentQuery{
		Query:         c.QueryParam("q"),
		Category:      c.QueryParam("category"),
		OnlyAvailable: truthy(c.QueryParam("available")),
	}
	items := make([]model.Equipment, 0)
	for item, err := range h.catalogSvc.Search(c.Request().Context(), q) {
		if err != nil {
			return h.fail(err)
		}
		items = append(items, item)
	}
	return c.JSON(http.StatusOK, items)
}

// GetEquipment godoc
// @Summary get equipment
// @Tags equipment
// @Produce json
// @Param id path int true "equipment id"
// @Success 200 {object} model.Equipment
// @Failure 404 {object} echo.HTTPError
// @Router /api/v1/equipment/{id} [get]
func (h *Handler) GetEquipment(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	item, err := h.catalogSvc.GetItem(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, item)
}

// CreateEquipment godoc
// @Summary create equipment
// @Tags equipment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateEquipmentRequest true "item"
// @Success 201 {object} model.Equipment
// @Failure 400 {object} echo.HTTPError
// @Failure 403 {object} echo.HTTPError
// @Router /api/v1/equipment [post]
func (h *Handler) CreateEquipment(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req model.CreateEquipmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.catalogSvc.CreateItem(c.Request().Context(), actor, req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateEquipment godoc
// @Summary update equipment
// @Description changing quantity resets availableQuantity to the new total
// @Tags equipment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "equipment id"
// @Param body body model.UpdateEquipmentRequest true "fields to change"
// @Success 200 {object} model.Equipment
// @Router /api/v1/equipment/{id} [put]
func (h *Handler) UpdateEquipment(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req model.UpdateEquipmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := h.catalogSvc.UpdateItem(c.Request().Context(), actor, id, req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, item)
}

// DeleteEquipment godoc
// @Summary delete equipment
// @Tags equipment
// @Security BearerAuth
// @Param id path int true "equipment id"
// @Success 204
// @Failure 409 {object} echo.HTTPError
// @Router /api/v1/equipment/{id} [delete]
func (h *Handler) DeleteEquipment(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.catalogSvc.DeleteItem(c.Request().Context(), actor, id); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
