package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hwmun/backend/config"
	"hwmun/backend/internal/access"
	"hwmun/backend/internal/api/handler"
	"hwmun/backend/internal/api/middleware"
	"hwmun/backend/internal/model"
	"hwmun/backend/pkg/jwt"
	"hwmun/backend/pkg/redis"
)

const (
	maxBodyBytes = 1 << 20

	// 写操作限流：每账号每路由每分钟 60 次；登录与公开报名按 IP 每分钟 10 次
	writeLimit = 60
	loginLimit = 10
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	writes := middleware.RateLimit(rdb, writeLimit, time.Minute)
	staff := middleware.AccessFilter(access.Staff, access.Admin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login", middleware.RateLimit(rdb, loginLimit, time.Minute), h.Auth.Login)

		// 公开报名（无需认证，按 IP 限流）
		public := middleware.RateLimit(rdb, loginLimit, time.Minute)
		v1.POST("/volunteers", public, h.Application.Submit(model.ApplicationVolunteer))
		v1.POST("/committees", public, h.Application.Submit(model.ApplicationCommittee))

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.POST("/users", middleware.AccessFilter(access.Admin), writes, h.Auth.CreateUser)

			// 会场目录
			authorized.GET("/sessions", h.Session.ListSessions)
			authorized.PUT("/sessions", middleware.AccessFilter(access.Admin), writes, h.Session.ReplaceSessions)

			// 学校模块（本校领队或会务，Service 层按学校鉴权）
			schools := authorized.Group("/schools")
			{
				schools.GET("", staff, h.School.ListSchools)
				schools.POST("", middleware.AccessFilter(access.Admin), writes, h.School.RegisterSchool)
				schools.GET("/:id", h.School.GetSchool)
				schools.DELETE("/:id", middleware.AccessFilter(access.Admin), h.School.DeleteSchool)

				schools.GET("/:id/seat", h.Seat.GetSeat)
				schools.POST("/:id/seat", writes, h.Seat.UpdateSeat)
				schools.PUT("/:id/preallocation", staff, writes, h.Seat.Preallocate)
				schools.POST("/:id/stage", writes, h.Stage.Advance)

				schools.POST("/:id/quota/sync", staff, h.School.SyncQuota)
				schools.GET("/:id/quota/errors", staff, h.School.QuotaErrors)
				schools.GET("/:id/logs", middleware.AccessFilter(access.Staff, access.Finance, access.Admin), h.School.ListLogs)
				schools.GET("/:id/representatives", h.School.ListRepresentatives)
				schools.PATCH("/:id/representatives/:rid", writes, h.School.UpdateRepresentative)

				schools.GET("/:id/reservations", h.Reservation.ListReservations)
				schools.POST("/:id/reservations", writes, h.Reservation.Reserve)
				schools.POST("/:id/reservations/:rid/roomshare", writes, h.Reservation.Roomshare)
				schools.GET("/:id/reservations.ics", h.Export.ExportReservations)

				schools.GET("/:id/payments", h.Payment.ListPayments)
				schools.POST("/:id/payments", writes, h.Payment.SubmitPayment)
				schools.PATCH("/:id/payments", middleware.AccessFilter(access.Finance), h.Payment.ReviewPayment)
				schools.GET("/:id/billing", h.Billing.GetBilling)
			}

			// 代表名单（主席团、财务、管理员）
			representatives := authorized.Group("/representatives")
			representatives.Use(middleware.AccessFilter(access.Dais, access.Finance, access.Admin))
			{
				representatives.GET("", h.School.ListAllRepresentatives)
				representatives.PATCH("/:rid", writes, h.School.UpdateRepresentativeNote)
			}

			// 名额交换
			exchanges := authorized.Group("/exchanges")
			{
				exchanges.GET("", middleware.AccessFilter(access.Leader, access.Staff, access.Admin), h.Exchange.ListExchanges)
				exchanges.POST("", middleware.AccessFilter(access.Leader), writes, h.Exchange.ProposeExchange)
				exchanges.POST("/:id", middleware.AccessFilter(access.Leader), writes, h.Exchange.RespondExchange)
			}

			// 酒店
			hotels := authorized.Group("/hotels")
			{
				hotels.GET("", h.Reservation.ListHotels)
				hotels.POST("", middleware.AccessFilter(access.Root), h.Reservation.CreateHotel)
				hotels.PATCH("/:id", middleware.AccessFilter(access.Root), h.Reservation.PatchHotel)
			}

			// 主席团名册与差旅报销
			daises := authorized.Group("/daises")
			{
				daises.GET("", middleware.AccessFilter(access.Admin), h.Dais.ListDaises)
				daises.POST("", middleware.AccessFilter(access.Admin), writes, h.Dais.CreateDais)
				daises.GET("/:id", middleware.AccessFilter(access.Dais, access.Admin, access.Finance), h.Dais.GetDais)
				daises.PATCH("/:id", middleware.AccessFilter(access.Dais, access.Admin, access.Finance), writes, h.Dais.UpdateDais)
				daises.POST("/:id", middleware.AccessFilter(access.Admin), writes, h.Dais.ActDais)
				daises.DELETE("/:id", middleware.AccessFilter(access.Admin), h.Dais.DeleteDais)
				daises.GET("/:id/reimbursement", middleware.AccessFilter(access.Dais, access.Admin, access.Finance), h.Dais.GetReimbursement)
				daises.PATCH("/:id/reimbursement", middleware.AccessFilter(access.Dais, access.Admin, access.Finance), writes, h.Dais.UpdateReimbursement)
				daises.POST("/:id/reimbursement/process", middleware.AccessFilter(access.Admin, access.Finance), writes, h.Dais.ProcessReimbursement)
			}
			authorized.GET("/dais-reimbursements", middleware.AccessFilter(access.Admin, access.Finance), h.Dais.ListReimbursements)

			// 报名表查看
			reviewers := middleware.AccessFilter(access.Staff, access.Finance, access.Admin)
			authorized.GET("/volunteers", reviewers, h.Application.List(model.ApplicationVolunteer))
			authorized.GET("/committees", reviewers, h.Application.List(model.ApplicationCommittee))

			// 导出
			admin := middleware.AccessFilter(access.Admin)
			authorized.GET("/export/seats", staff, h.Export.ExportSeats)
			authorized.GET("/export/representatives", admin, h.Export.ExportRepresentatives)
			authorized.GET("/export/leaders", admin, h.Export.ExportLeaders)
			authorized.GET("/export/reservations", admin, h.Export.ExportAllReservations)
			authorized.GET("/export/billings", admin, h.Export.ExportBillings)
		}
	}

	return r
}
