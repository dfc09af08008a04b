package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ViniMesquitaa/map-medical/internal/config"
	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
)

const (
	msgSubmitted       = "Solicitação de emergência recebida e notificação enviada."
	msgSubmittedIssues = "Solicitação de emergência recebida."
)

type Handler struct {
	dispatchService  service.DispatchService
	responderService service.ResponderService
	logger           *logrus.Logger
	validate         *validator.Validate
	cfg              *config.Config
}

func NewHandler(dispatchService service.DispatchService, responderService service.ResponderService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		dispatchService:  dispatchService,
		responderService: responderService,
		logger:           logger,
		validate:         validator.New(),
		cfg:              cfg,
	}
}

// @Summary Submit an emergency request
// @Description Geocodes the location, stores the request as pending and notifies responders. Geocoding or push problems are returned as warnings.
// @Tags Requests
// @Accept json
// @Produce json
// @Param request body EmergencyRequestBody true "Emergency request"
// @Success 200 {object} SubmitResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 429 {object} map[string]string "Too many requests"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /requestEmergency [post]
func (h *Handler) requestEmergency(c *gin.Context) {
	var input EmergencyRequestBody
	log := h.logger.WithField("method", "requestEmergency")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.dispatchService.Submit(c.Request.Context(), input.EmergencyType, DTOToCoordinates(input.Location))
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Failed to submit request in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	message := msgSubmitted
	if len(result.Warnings) > 0 {
		message = msgSubmittedIssues
	}
	c.JSON(http.StatusOK, SubmitResponse{
		Message:   message,
		RequestID: result.Request.ID,
		Address:   result.Request.Address,
		Warnings:  result.Warnings,
	})
}

// @Summary Respond to an emergency request
// @Description Accepts or rejects a pending request. Only the first decision wins.
// @Tags Requests
// @Accept json
// @Produce json
// @Param response body RespondRequestBody true "Responder decision"
// @Success 200 {object} RespondResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} ConflictResponse "Request already answered"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /respondToRequest [post]
func (h *Handler) respondToRequest(c *gin.Context) {
	var input RespondRequestBody
	log := h.logger.WithField("method", "respondToRequest")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, _ := models.ParseDecision(input.Response)

	// ID не в формате UUID не может существовать в хранилище
	id, err := uuid.Parse(input.RequestID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	log = log.WithField("id", id)

	req, err := h.dispatchService.Respond(c.Request.Context(), id, decision)
	if err != nil {
		var conflict *service.ConflictError
		switch {
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, ConflictResponse{
				Error:  "request already answered",
				Status: string(conflict.Current),
			})
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.WithError(err).Error("Failed to respond to request in service")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, ModelToRespondResponse(req, decision))
}

// @Summary Get request history
// @Description Returns all requests in creation order, most recent last.
// @Tags Requests
// @Produce json
// @Success 200 {array} RequestResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /getRequests [get]
func (h *Handler) getRequests(c *gin.Context) {
	log := h.logger.WithField("method", "getRequests")

	requests, err := h.dispatchService.ListHistory(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list requests from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToRequestResponses(requests))
}

// @Summary Get request by ID
// @Description Returns a single request, used by the patient app to poll its status.
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} RequestResponse
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /getRequest/{id} [get]
func (h *Handler) getRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	log := h.logger.WithField("method", "getRequest").WithField("id", id)

	req, err := h.dispatchService.GetRequest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		log.WithError(err).Error("Failed to get request from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelToRequestResponse(req))
}

// @Summary Remove a request
// @Description Deletes a single request. Requires API key when API_KEYS is set.
// @Tags Operator
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Request ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /removeRequest/{id} [delete]
func (h *Handler) removeRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	log := h.logger.WithField("method", "removeRequest").WithField("id", id)

	if err := h.dispatchService.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		log.WithError(err).Error("Failed to remove request in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request removed"})
}

// @Summary Remove all requests
// @Description Clears the request history. Requires API key when API_KEYS is set.
// @Tags Operator
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} RemoveAllResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /removeAllRequests [delete]
func (h *Handler) removeAllRequests(c *gin.Context) {
	log := h.logger.WithField("method", "removeAllRequests")

	n, err := h.dispatchService.RemoveAll(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to remove requests in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, RemoveAllResponse{Message: "all requests removed", Deleted: n})
}

// @Summary Register a responder device
// @Description Registers (or re-activates) an Expo push token. Requires API key when API_KEYS is set.
// @Tags Responders
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param responder body RegisterResponderRequest true "Responder device"
// @Success 201 {object} ResponderResponse
// @Failure 400 {object} map[string]string "Invalid request body or token"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responders [post]
func (h *Handler) registerResponder(c *gin.Context) {
	var input RegisterResponderRequest
	log := h.logger.WithField("method", "registerResponder")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.responderService.Register(c.Request.Context(), input.Name, input.DeviceToken)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Failed to register responder in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToResponderResponse(device))
}

// @Summary List responder devices
// @Tags Responders
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} ResponderResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responders [get]
func (h *Handler) listResponders(c *gin.Context) {
	log := h.logger.WithField("method", "listResponders")

	devices, err := h.responderService.List(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list responders from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToResponderResponses(devices))
}

// @Summary Remove a responder device
// @Tags Responders
// @Security ApiKeyAuth
// @Param id path string true "Responder ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Responder not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /responders/{id} [delete]
func (h *Handler) removeResponder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "responder not found"})
		return
	}
	log := h.logger.WithField("method", "removeResponder").WithField("id", id)

	if err := h.responderService.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "responder not found"})
			return
		}
		log.WithError(err).Error("Failed to remove responder in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
