package server

import (
	"net/http"

	"ecorder/internal/config"
	"ecorder/internal/handler"
	"ecorder/internal/metrics"
	"ecorder/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlers はルーティングに載せるハンドラ一式
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminPayment *handler.AdminPaymentHandler
}

// RegisterRoutes は公開ルートと認証ルートをまとめて登録する。
// nilのハンドラは飛ばす
func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	if h.Auth != nil {
		h.Auth.RegisterRoutes(e)
	}
	if h.Product != nil {
		h.Product.RegisterRoutes(e)
	}
	if h.Cart != nil {
		h.Cart.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Order != nil {
		h.Order.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Payment != nil {
		h.Payment.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminProduct != nil {
		h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminOrder != nil {
		h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminPayment != nil {
		h.AdminPayment.RegisterRoutes(e, cfg, userRepo)
	}
}
