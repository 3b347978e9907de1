package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lesson-api/internal/middleware"
	"github.com/noah-isme/sma-lesson-api/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Bookings *BookingHandler
	Packages *PackageHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler
}

// RegisterRoutes mounts the authenticated booking API on api.
func RegisterRoutes(api *gin.RouterGroup, tokens middleware.TokenValidator, h Handlers) {
	staff := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
	scheduling := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher}

	api.Use(middleware.JWT(tokens))

	bookings := api.Group("/bookings")
	{
		bookings.GET("", middleware.RequireRoles(scheduling...), h.Bookings.List)
		bookings.GET("/day", middleware.RequireRoles(scheduling...), h.Bookings.Day)
		bookings.POST("", middleware.RequireRoles(scheduling...), h.Bookings.Create)
		bookings.POST("/recurring", middleware.RequireRoles(scheduling...), h.Bookings.CreateRecurring)
		bookings.POST("/availability", middleware.RequireRoles(scheduling...), h.Bookings.Availability)
		bookings.GET("/:id", middleware.RequireRoles(scheduling...), h.Bookings.Get)
		bookings.GET("/:id/occurrences", middleware.RequireRoles(scheduling...), h.Bookings.Occurrences)
		bookings.PUT("/:id", middleware.RequireRoles(scheduling...), h.Bookings.Update)
		bookings.POST("/:id/cancel", middleware.RequireRoles(scheduling...), h.Bookings.Cancel)
		bookings.DELETE("/:id", middleware.RequireRoles(staff...), h.Bookings.Delete)
	}

	packages := api.Group("/packages")
	{
		packages.POST("", middleware.RequireRoles(staff...), h.Packages.Create)
		packages.GET("/:id", middleware.RequireRoles(scheduling...), h.Packages.Get)
		packages.POST("/:id/cancel", middleware.RequireRoles(staff...), h.Packages.Cancel)
	}

	api.GET("/teachers/:id/timetable/export", middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), "SELF"), h.Exports.TeacherTimetable)
	api.GET("/system/metrics", middleware.RequireRoles(staff...), h.Metrics.Snapshot)
}
