package http

import "github.com/gin-gonic/gin"

// Register attaches workspace routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/open", h.open)
	rg.GET("/files", h.getFiles)
	rg.PUT("/files", h.putFiles)
	rg.POST("/undo", h.undo)
	rg.POST("/redo", h.redo)
	rg.POST("/cache/clear", h.clearCache)

	rg.GET("/sync", h.getSync)
	rg.POST("/sync", h.reconcile)

	rg.GET("/preview", h.getPreview)
	rg.POST("/preview/refresh", h.refreshPreview)
	rg.GET("/preview/frame", h.frame)
	rg.POST("/preview/navigate", h.navigate)
	rg.GET("/bridge", h.bridge)

	rg.POST("/chat", h.chat)
	rg.POST("/chat/cancel", h.cancelChat)
	rg.POST("/chat/plans/:message_id/approve", h.approvePlan)
	rg.POST("/chat/plans/:message_id/reject", h.rejectPlan)

	rg.GET("/events", h.streamEvents)
}
