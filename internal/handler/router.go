package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SetupRouter 配置路由，除健康检查和指标外都需要 bearer token
func SetupRouter(h *Handler, auth AuthProvider, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(TracingMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(auth, h.identity))
	{
		account := api.Group("/account")
		{
			account.GET("", h.GetAccount)
			account.PUT("/profile", h.UpdateProfile)
		}

		pair := api.Group("/pair")
		{
			pair.POST("/create", h.Redeem)
			pair.POST("/dissolve", h.Dissolve)
			pair.POST("/reconnect", h.Reconnect)
			pair.POST("/pause", h.Pause)
			pair.POST("/resume", h.Resume)
			pair.GET("/couple", h.GetCouple)
			pair.GET("/invite-code", h.GetInviteCode)
			pair.POST("/invite-code/regenerate", h.RegenerateInviteCode)
		}

		api.POST("/grapes/spend", h.SpendGrapes)
		api.POST("/grapes/earn", h.EarnGrapes)
		api.POST("/praise/spend", h.SpendPraise)
		api.POST("/praise/earn", h.EarnPraise)
		api.GET("/ledger", h.ListLedger)

		coupons := api.Group("/coupons")
		{
			coupons.POST("", h.CreateCoupon)
			coupons.GET("", h.ListCoupons)
			coupons.PUT("/:id", h.EditCoupon)
			coupons.DELETE("/:id", h.DeleteCoupon)
			coupons.POST("/:id/send", h.SendCoupon)
			coupons.POST("/:id/use", h.UseCoupon)
			coupons.POST("/:id/undo", h.UndoCoupon)
		}

		boards := api.Group("/boards")
		{
			boards.POST("", h.CreateBoard)
			boards.GET("", h.ListBoards)
			boards.POST("/:id/advance", h.AdvanceBoard)
		}

		shop := api.Group("/shop/listings")
		{
			shop.POST("", h.CreateListing)
			shop.GET("", h.ListListings)
			shop.POST("/:id/purchase", h.Purchase)
			shop.POST("/:id/deactivate", h.DeactivateListing)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
