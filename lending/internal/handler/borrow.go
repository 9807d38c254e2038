package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/auth"
)

// CreateBorrow godoc
// @Summary submit a borrow request
// @Tags borrow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateBorrowRequest true "request"
// @Success 201 {object} model.BorrowRequest
// @Failure 400 {object} echo.HTTPError
// @Router /api/v1/borrow [post]
func (h *Handler) CreateBorrow(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	var req model.CreateBorrowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	created, err := h.borrowSvc.CreateRequest(c.Request().Context(), actor, req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// ListMyBorrows godoc
// @Summary requests of the caller, newest first
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.BorrowRequestView
// @Router /api/v1/borrow/my [get]
func (h *Handler) ListMyBorrows(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.borrowSvc.ListMine(c.Request().Context(), actor)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, orEmpty(list))
}

// ListAllBorrows godoc
// @Summary all requests, newest first
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.BorrowRequestView
// @Failure 403 {object} echo.HTTPError
// @Router /api/v1/borrow/all [get]
func (h *Handler) ListAllBorrows(c echo.Context) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.borrowSvc.ListAll(c.Request().Context(), actor)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, orEmpty(list))
}

func orEmpty(list []model.BorrowRequestView) []model.BorrowRequestView {
	if list == nil {
		return []model.BorrowRequestView{}
	}
	return list
}

// GetBorrow godoc
// @Summary get a request
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "request id"
// @Success 200 {object} model.BorrowRequest
// @Failure 403 {object} echo.HTTPError
// @Failure 404 {object} echo.HTTPError
// @Router /api/v1/borrow/{id} [get]
func (h *Handler) GetBorrow(c echo.Context) error {
	return h.withRequest(c, http.StatusOK, h.borrowSvc.GetRequest)
}

// ApproveBorrow godoc
// @Summary approve a REQUESTED request
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "request id"
// @Success 200 {object} model.BorrowRequest
// @Failure 409 {object} echo.HTTPError
// @Router /api/v1/borrow/{id}/approve [put]
func (h *Handler) ApproveBorrow(c echo.Context) error {
	return h.withRequest(c, http.StatusOK, h.borrowSvc.Approve)
}

// RejectBorrow godoc
// @Summary reject a REQUESTED request
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "request id"
// @Success 200 {object} model.BorrowRequest
// @Failure 409 {object} echo.HTTPError
// @Router /api/v1/borrow/{id}/reject [put]
func (h *Handler) RejectBorrow(c echo.Context) error {
	return h.withRequest(c, http.StatusOK, h.borrowSvc.Reject)
}

// ReturnBorrow godoc
// @Summary mark an APPROVED request returned
// @Tags borrow
// @Produce json
// @Security BearerAuth
// @Param id path int true "request id"
// @Success 200 {object} model.BorrowRequest
// @Failure 409 {object} echo.HTTPError
// @Router /api/v1/borrow/{id}/return [put]
func (h *Handler) ReturnBorrow(c echo.Context) error {
	return h.withRequest(c, http.StatusOK, h.borrowSvc.Return)
}

type requestOp func(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error)

func (h *Handler) withRequest(c echo.Context, code int, op requestOp) error {
	actor, err := principal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	req, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(code, req)
}
