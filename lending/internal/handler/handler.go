package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	_ "github.com/mkayfour/school-lending/lending/swagger"
	"github.com/mkayfour/school-lending/pkg/auth"
	md "github.com/mkayfour/school-lending/pkg/middleware"
	"github.com/mkayfour/school-lending/pkg/validate"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

type Handler struct {
	catalogSvc  CatalogService
	borrowSvc   BorrowService
	identitySvc IdentityService
	tokens      md.TokenParser
	log         *zap.Logger
}

func New(catalog CatalogService, borrow BorrowService, identity IdentityService, tokens md.TokenParser, log *zap.Logger) *Handler {
	return &Handler{
		catalogSvc:  catalog,
		borrowSvc:   borrow,
		identitySvc: identity,
		tokens:      tokens,
		log:         log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, md.AuthorizationHeader},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		md.NewRateLimiter(apiRPS),
	)
	h.register(api)
	return e
}

// register mounts the API routes on g.
func (h *Handler) register(g *echo.Group) {
	g.POST("/auth/signup", h.Signup)
	g.POST("/auth/login", h.Login)

	g.GET("/equipment", h.ListEquipment)
	g.GET("/equipment/:id", h.GetEquipment)

	authed := g.Group("", md.JwtAuthentication(h.tokens))
	authed.POST("/equipment", h.CreateEquipment)
	authed.PUT("/equipment/:id", h.UpdateEquipment)
	authed.DELETE("/equipment/:id", h.DeleteEquipment)

	authed.POST("/borrow", h.CreateBorrow)
	authed.GET("/borrow/my", h.ListMyBorrows)
	authed.GET("/borrow/all", h.ListAllBorrows)
	authed.GET("/borrow/:id", h.GetBorrow)
	authed.PUT("/borrow/:id/approve", h.ApproveBorrow)
	authed.PUT("/borrow/:id/reject", h.RejectBorrow)
	authed.PUT("/borrow/:id/return", h.ReturnBorrow)

	// authed.Use claimed the group's catch-all; unknown paths are 404 for everyone.
	g.RouteNotFound("", echo.NotFoundHandler)
	g.RouteNotFound("/*", echo.NotFoundHandler)
}

// Health godoc
// @Summary liveness probe
// @Tags manage
// @Success 200 {string} string "OK"
// @Router /manage/health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	return p, nil
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	return id, nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// fail maps a service error onto an HTTP error.
func (h *Handler) fail(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrReference):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrCapacity),
		errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrEmailTaken):
		code = http.StatusConflict
	default:
		h.log.Error("internal", zap.Error(err))
	}
	return echo.NewHTTPError(code, err.Error())
}
