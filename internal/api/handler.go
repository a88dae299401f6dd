package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vendmart/server/internal/apperrors"
	"github.com/vendmart/server/internal/models"
	"github.com/vendmart/server/internal/service"
	"github.com/vendmart/server/internal/utils"
	"golang.org/x/time/rate"
)

// Handler holds the API handlers and their dependencies
type Handler struct {
	svc    service.Service
	logger *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: utils.NewLogger(),
	}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	auth := AuthMiddleware(h.svc)

	user := api.Group("/user")
	user.POST("", h.Register)
	user.POST("/login", RateLimitMiddleware(rate.Limit(1), 5), h.Login)
	user.GET("/me", auth, h.Me)
	user.POST("/deposit", auth, h.Deposit)
	user.POST("/reset", auth, h.Reset)

	product := api.Group("/product")
	product.POST("", auth, h.AddProduct)
	product.GET("", h.ListProducts)
	product.GET("/:product_id", h.ProductDetails)
	product.PATCH("/:product_id", auth, h.UpdateProduct)
	product.DELETE("/:product_id", auth, h.DeleteProduct)
	product.POST("/buy/:product_id", auth, h.Buy)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

// User handlers
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeInvalidRequest},
		})
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeInvalidRequest},
		})
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{User: user})
}

func (h *Handler) Deposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A non-integer amount never reaches the ledger.
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeInvalidAmount},
		})
		return
	}

	resp, err := h.svc.Deposit(c.Request.Context(), currentUserID(c), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Reset(c *gin.Context) {
	resp, err := h.svc.ResetDeposit(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Product handlers
func (h *Handler) AddProduct(c *gin.Context) {
	var req models.AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeInvalidRequest},
		})
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.ProductResponse{Product: product})
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{Products: products})
}

func (h *Handler) ProductDetails(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	product, err := h.svc.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Product: product})
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeInvalidRequest},
		})
		return
	}

	product, err := h.svc.UpdateProduct(c.Request.Context(), currentUserID(c), productID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Product: product})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteProduct(c.Request.Context(), currentUserID(c), productID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Buy(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req models.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// An unknown product is reported before the malformed amount.
		if _, lookupErr := h.svc.GetProduct(c.Request.Context(), productID); lookupErr != nil {
			h.respondError(c, lookupErr)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Errors: []string{apperrors.CodeNaNProductAmount},
		})
		return
	}

	resp, err := h.svc.Buy(c.Request.Context(), currentUserID(c), productID, req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// respondError maps service errors onto the documented envelope. Validation
// failures arrive as form_errors; everything unexpected becomes a 500 without
// leaking internals.
func (h *Handler) respondError(c *gin.Context, err error) {
	if valErr, ok := apperrors.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			FormErrors: valErr.FormErrors,
		})
		return
	}

	if appErr, ok := apperrors.AsError(err); ok {
		c.JSON(appErr.Status, models.ErrorResponse{
			Errors: []string{appErr.Code},
		})
		return
	}

	h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Errors: []string{apperrors.CodeInternalError},
	})
}

func currentUserID(c *gin.Context) int {
	return c.GetInt("userId")
}

func productIDParam(c *gin.Context) (int, bool) {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Errors: []string{apperrors.CodeWrongProductID},
		})
		return 0, false
	}
	return productID, true
}
