package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/events", h.streamEvents)

	rg.GET("/:public_id", h.get)
	rg.PATCH("/:public_id", h.rename)
	rg.DELETE("/:public_id", h.delete)
	rg.PUT("/:public_id/remote", h.linkRemote)
	rg.DELETE("/:public_id/remote", h.unlinkRemote)
	rg.POST("/:public_id/deployments", h.recordDeployment)
	rg.PUT("/:public_id/visibility", h.setVisibility)

	rg.GET("/:public_id/conversations", h.listConversations)
	rg.POST("/:public_id/conversations", h.createConversation)
	rg.GET("/:public_id/conversations/:conversation_id/messages", h.listMessages)
}
