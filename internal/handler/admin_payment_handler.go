package handler

import (
	"net/http"
	"strconv"

	"ecorder/internal/config"
	"ecorder/internal/middleware"
	"ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 支払いと返金の管理者操作
type AdminPaymentHandler struct {
	paymentUC *usecase.PaymentUsecase
	refundUC  *usecase.RefundUsecase
}

func NewAdminPaymentHandler(paymentUC *usecase.PaymentUsecase, refundUC *usecase.RefundUsecase) *AdminPaymentHandler {
	return &AdminPaymentHandler{paymentUC: paymentUC, refundUC: refundUC}
}

type BulkIDsRequest struct {
	IDs       []int64 `json:"ids"`
	AdminNote *string `json:"admin_note"`
}

type BulkResponse struct {
	Results []usecase.BulkResult `json:"results"`
}

func (h *AdminPaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/payments/:id/approve", h.approvePayment)
	admin.POST("/payments/:id/reject", h.rejectPayment)
	admin.POST("/payments/approve", h.approvePayments)
	admin.POST("/payments/reject", h.rejectPayments)

	admin.GET("/refunds", h.listRefunds)
	admin.POST("/refunds/approve", h.approveRefunds)
	admin.POST("/refunds/reject", h.rejectRefunds)
}

func (h *AdminPaymentHandler) approvePayment(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	paymentID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.paymentUC.Approve(c.Request().Context(), adminID, paymentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminPaymentHandler) rejectPayment(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	paymentID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.paymentUC.Reject(c.Request().Context(), adminID, paymentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminPaymentHandler) approvePayments(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req BulkIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	results, err := h.paymentUC.ApproveBulk(c.Request().Context(), adminID, req.IDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, BulkResponse{Results: results})
}

func (h *AdminPaymentHandler) rejectPayments(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req BulkIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	results, err := h.paymentUC.RejectBulk(c.Request().Context(), adminID, req.IDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, BulkResponse{Results: results})
}

func (h *AdminPaymentHandler) listRefunds(c echo.Context) error {
	var orderID *int64
	if v := c.QueryParam("order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid order_id")
		}
		orderID = &id
	}

	out, err := h.refundUC.List(c.Request().Context(), usecase.RefundListInput{
		Status:  c.QueryParam("status"),
		OrderID: orderID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminPaymentHandler) approveRefunds(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req BulkIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	results, err := h.refundUC.ApproveBulk(c.Request().Context(), adminID, req.IDs, req.AdminNote)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, BulkResponse{Results: results})
}

func (h *AdminPaymentHandler) rejectRefunds(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	var req BulkIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	results, err := h.refundUC.RejectBulk(c.Request().Context(), adminID, req.IDs, req.AdminNote)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, BulkResponse{Results: results})
}
