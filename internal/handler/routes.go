package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

// Router bundles the handlers and guards mounted under the API prefix.
type Router struct {
	Auth  middleware.TokenValidator
	Users middleware.UserProvisioner
	Audit middleware.AuditWriter

	Roster       *RosterHandler
	Team         *TeamHandler
	Chat         *ChatHandler
	Attendance   *AttendanceHandler
	User         *UserHandler
	Notification *NotificationHandler
	LOR          *LORHandler
	Webhook      *WebhookHandler
	Metrics      *MetricsHandler

	Logger *zap.Logger
}

// Register mounts every route on api.
func (r Router) Register(api *gin.RouterGroup) {
	api.POST("/webhooks/identity", r.Webhook.Identity)

	secured := api.Group("")
	secured.Use(middleware.JWT(r.Auth), middleware.EnsureUser(r.Users))

	teams := secured.Group("/teams")
	teams.GET("/student-info", r.Roster.StudentInfo)
	teams.GET("/student-info/export", r.Roster.Export)
	teams.PUT("/update-progress", r.Team.UpdateProgress)
	teams.POST("", r.Team.Create)
	teams.GET("", r.Team.List)
	teams.GET("/:id", r.Team.Get)
	teams.POST("/:id/join", r.Team.RequestJoin)
	teams.GET("/:id/requests", r.Team.ListRequests)
	teams.POST("/:id/requests/:userId/accept", r.Team.AcceptRequest)
	teams.POST("/:id/requests/:userId/reject", r.Team.RejectRequest)
	teams.PUT("/:id/members/:userId/role", r.Team.UpdateMemberRole)
	teams.DELETE("/:id/members/:userId", r.Team.RemoveMember)
	teams.GET("/:id/messages", r.Chat.List)
	teams.POST("/:id/messages", r.Chat.Send)
	teams.POST("/:id/files", r.Chat.Upload)
	teams.GET("/:id/ws", r.Chat.Socket)
	teams.GET("/:id/lor", middleware.Audit(r.Audit, models.AuditActionLORDownload, "team", r.Logger), r.LOR.Download)

	attendance := secured.Group("/attendance")
	attendance.POST("", r.Attendance.Mark)
	attendance.GET("/me", r.Attendance.Mine)

	users := secured.Group("/users")
	users.GET("/me", r.User.Me)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf), r.User.Get)

	secured.PUT("/notifications/device-token",
		middleware.Audit(r.Audit, models.AuditActionDeviceToken, "device_token", r.Logger),
		r.Notification.RegisterDeviceToken,
	)

	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/metrics", r.Metrics.Snapshot)
}
