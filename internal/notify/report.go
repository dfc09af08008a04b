package notify

import (
	"github.com/google/uuid"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

// Outcome - результат доставки для одного устройства
type Outcome string

const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeFailed       Outcome = "failed"
	OutcomeInvalidToken Outcome = "invalid_token"
	// Expo сообщил DeviceNotRegistered: приложение удалено или токен отозван
	OutcomeUnregistered Outcome = "unregistered"
)

// DeviceOutcome - квитанция по одному устройству
type DeviceOutcome struct {
	DeviceID uuid.UUID `json:"device_id"`
	Outcome  Outcome   `json:"outcome"`
	Detail   string    `json:"detail,omitempty"`
}

// DeliveryReport - итог рассылки по всем устройствам
type DeliveryReport struct {
	Outcomes     []DeviceOutcome `json:"outcomes"`
	Delivered    int             `json:"delivered"`
	Failed       int             `json:"failed"`
	Invalid      int             `json:"invalid"`
	Unregistered int             `json:"unregistered"`
}

func (r *DeliveryReport) add(device *models.ResponderDevice, outcome Outcome, detail string) {
	r.Outcomes = append(r.Outcomes, DeviceOutcome{DeviceID: device.ID, Outcome: outcome, Detail: detail})
	switch outcome {
	case OutcomeDelivered:
		r.Delivered++
	case OutcomeFailed:
		r.Failed++
	case OutcomeInvalidToken:
		r.Invalid++
	case OutcomeUnregistered:
		r.Unregistered++
	}
}

// HasFailures сообщает, что хотя бы одно устройство не получило уведомление
func (r *DeliveryReport) HasFailures() bool {
	return r == nil || r.Failed > 0 || r.Invalid > 0 || r.Unregistered > 0
}

// DevicesWith возвращает ID устройств с указанным результатом
func (r *DeliveryReport) DevicesWith(outcome Outcome) []uuid.UUID {
	if r == nil {
		return nil
	}
	var ids []uuid.UUID
	for _, o := range r.Outcomes {
		if o.Outcome == outcome {
			ids = append(ids, o.DeviceID)
		}
	}
	return ids
}
