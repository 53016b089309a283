package handlers

import "github.com/gin-gonic/gin"

type Handlers struct {
	System       *SystemHandler
	Catalog      *CatalogHandler
	Submissions  *SubmissionHandler
	Subscription *SubscriptionHandler
	Admin        *AdminHandler
	Reports      *ReportHandler
}

// RegisterRoutes mounts the public API and, behind adminAuth, the admin API under /api/v1.
func RegisterRoutes(r *gin.Engine, h Handlers, adminAuth gin.HandlerFunc) {
	api := r.Group("/api/v1")

	api.GET("/health", h.System.Health)
	api.GET("/site", h.System.Site)

	api.GET("/categories", h.Catalog.Categories)
	api.GET("/categories/:slug/resources", h.Catalog.CategoryResources)
	api.GET("/resources", h.Catalog.Resources)
	api.GET("/resources/:slug", h.Catalog.Resource)
	api.GET("/search", h.Catalog.Search)
	api.GET("/terms", h.Catalog.Terms)
	api.GET("/team", h.Catalog.Team)

	api.POST("/submissions", h.Submissions.Submit)

	api.POST("/subscriptions", h.Subscription.Subscribe)
	api.GET("/subscriptions/:token/confirm", h.Subscription.Confirm)
	api.PUT("/subscriptions/:token", h.Subscription.Update)
	api.DELETE("/subscriptions/:token", h.Subscription.Unsubscribe)

	admin := api.Group("/admin", adminAuth)
	{
		admin.GET("/submissions", h.Submissions.List)
		admin.GET("/submissions/:id", h.Submissions.Get)
		admin.POST("/submissions/:id/transitions", h.Submissions.Transition)
		admin.POST("/reminders/run", h.Submissions.ProcessReminders)

		admin.POST("/contact-jobs", h.Admin.StartContactJob)
		admin.GET("/contact-jobs/:id", h.Admin.ContactJobStatus)
		admin.DELETE("/contact-jobs/:id", h.Admin.CancelContactJob)

		admin.PUT("/resources/:id/visibility", h.Admin.SetVisibility)
		admin.POST("/categories", h.Admin.CreateCategory)
		admin.POST("/terms", h.Admin.CreateTerm)
		admin.POST("/team", h.Admin.CreateTeamMember)
		admin.DELETE("/team/:id", h.Admin.DeleteTeamMember)
		admin.POST("/links/check", h.Admin.CheckLinks)

		admin.GET("/reports/summary", h.Reports.Summary)
		admin.GET("/reports/export", h.Reports.Export)
		admin.GET("/reports/links", h.Reports.BrokenLinks)

		admin.POST("/digests/run", h.Subscription.RunDigests)
		admin.GET("/system/stats", h.System.Stats)
	}
}
