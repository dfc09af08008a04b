package v1

import (
	"time"

	"github.com/google/uuid"
)

// LocationDTO координаты пациента
// @Description Координаты пациента
type LocationDTO struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude" example:"10"`
	Longitude *float64 `json:"longitude" validate:"required,longitude" example:"20"`
}

// EmergencyRequestBody DTO для создания заявки
// @Description DTO для создания заявки
type EmergencyRequestBody struct {
	EmergencyType string       `json:"emergencyType" validate:"required,max=255" example:"cardiac"`
	Location      *LocationDTO `json:"location" validate:"required"`
}

// SubmitResponse DTO ответа на создание заявки
// @Description DTO ответа на создание заявки
type SubmitResponse struct {
	Message   string    `json:"message"`
	RequestID uuid.UUID `json:"requestId"`
	Address   string    `json:"address"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// RespondRequestBody DTO решения врача
// @Description DTO решения врача
type RespondRequestBody struct {
	RequestID string `json:"requestId" validate:"required"`
	Response  string `json:"response" validate:"required,oneof=accepted rejected" example:"accepted"`
}

// RespondResponse DTO ответа на решение врача
// @Description DTO ответа на решение врача
type RespondResponse struct {
	Message   string            `json:"message"`
	RequestID uuid.UUID         `json:"requestId"`
	Status    string            `json:"status"`
	Address   string            `json:"address,omitempty"`
	Location  *LocationResponse `json:"location,omitempty"`
}

// LocationResponse координаты пациента в ответе врачу, по ним приложение центрирует карту
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ConflictResponse тело ответа 409
// @Description Заявка уже получила ответ
type ConflictResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// RequestResponse DTO заявки в истории
// @Description DTO заявки в истории
type RequestResponse struct {
	ID            uuid.UUID  `json:"id"`
	EmergencyType string     `json:"emergencyType"`
	Address       string     `json:"address"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	Timestamp     time.Time  `json:"timestamp"`
	Status        string     `json:"status"`
	RespondedAt   *time.Time `json:"respondedAt,omitempty"`
}

// RemoveAllResponse DTO ответа на очистку истории
// @Description DTO ответа на очистку истории
type RemoveAllResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// RegisterResponderRequest DTO регистрации устройства врача
// @Description DTO регистрации устройства врача
type RegisterResponderRequest struct {
	Name        string `json:"name" validate:"max=255"`
	DeviceToken string `json:"deviceToken" validate:"required" example:"ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"`
}

// ResponderResponse DTO устройства врача
// @Description DTO устройства врача
type ResponderResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DeviceToken string    `json:"deviceToken"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}
