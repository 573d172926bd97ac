package cases

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the case workflow routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/cases")
	{
		group.POST("", h.createCase)
		group.GET("/:id", h.getCase)
		group.GET("/:id/transitions", h.listTransitions)
		group.GET("/:id/permitted-events", h.permittedEvents)
		group.POST("/:id/events/:event", h.triggerEvent)
		group.GET("/:id/events/:event/permitted", h.canTrigger)
	}
}
