package v1

import (
	"github.com/ViniMesquitaa/map-medical/internal/models"
)

// DTOToCoordinates преобразует DTO координат в доменную модель
func DTOToCoordinates(dto *LocationDTO) models.Coordinates {
	return models.Coordinates{
		Latitude:  *dto.Latitude,
		Longitude: *dto.Longitude,
	}
}

// ModelToRequestResponse преобразует заявку в DTO для ответа
func ModelToRequestResponse(model *models.EmergencyRequest) *RequestResponse {
	return &RequestResponse{
		ID:            model.ID,
		EmergencyType: model.EmergencyType,
		Address:       model.Address,
		Latitude:      model.Coordinates.Latitude,
		Longitude:     model.Coordinates.Longitude,
		Timestamp:     model.CreatedAt,
		Status:        string(model.Status),
		RespondedAt:   model.RespondedAt,
	}
}

// ModelToRespondResponse строит ответ на решение врача.
// Заявка без CreatedAt не была перечитана из хранилища, координаты в ней неизвестны.
func ModelToRespondResponse(model *models.EmergencyRequest, decision models.RequestStatus) *RespondResponse {
	resp := &RespondResponse{
		Message:   string(decision),
		RequestID: model.ID,
		Status:    string(model.Status),
	}
	if !model.CreatedAt.IsZero() {
		resp.Address = model.Address
		resp.Location = &LocationResponse{
			Latitude:  model.Coordinates.Latitude,
			Longitude: model.Coordinates.Longitude,
		}
	}
	return resp
}

// ModelsToRequestResponses преобразует слайс заявок в слайс DTO
func ModelsToRequestResponses(models []*models.EmergencyRequest) []*RequestResponse {
	responses := make([]*RequestResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToRequestResponse(model)
	}
	return responses
}

// ModelToResponderResponse преобразует устройство врача в DTO
func ModelToResponderResponse(model *models.ResponderDevice) *ResponderResponse {
	return &ResponderResponse{
		ID:          model.ID,
		Name:        model.Name,
		DeviceToken: model.DeviceToken,
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
	}
}

func ModelsToResponderResponses(models []*models.ResponderDevice) []*ResponderResponse {
	responses := make([]*ResponderResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToResponderResponse(model)
	}
	return responses
}
