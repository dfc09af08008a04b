package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API.
// submitMiddleware применяется только к созданию заявок (лимит частоты).
func (h *Handler) RegisterRoutes(api gin.IRouter, submitMiddleware ...gin.HandlerFunc) {
	// Маршруты мобильных приложений пациента и врача
	api.POST("/requestEmergency", append(submitMiddleware, h.requestEmergency)...)
	api.POST("/respondToRequest", h.respondToRequest)
	api.GET("/getRequests", h.getRequests)
	api.GET("/getRequest/:id", h.getRequest)

	// Операторские маршруты
	operator := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		operator.DELETE("/removeRequest/:id", h.removeRequest)
		operator.DELETE("/removeAllRequests", h.removeAllRequests)

		operator.POST("/responders", h.registerResponder)
		operator.GET("/responders", h.listResponders)
		operator.DELETE("/responders/:id", h.removeResponder)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
