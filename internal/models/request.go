package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RequestStatus - состояние заявки в жизненном цикле диспетчеризации
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// IsTerminal сообщает, что из статуса s переходов больше нет
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseDecision принимает только два итоговых статуса, доступных врачу
func ParseDecision(v string) (RequestStatus, bool) {
	switch RequestStatus(v) {
	case StatusAccepted, StatusRejected:
		return RequestStatus(v), true
	}
	return "", false
}

// Типы экстренных случаев из приложения пациента. Произвольный текст тоже принимается.
const (
	EmergencyCardiac         = "cardiac"
	EmergencyTrafficAccident = "traffic-accident"
	EmergencyFall            = "fall"
	EmergencyRespiratory     = "respiratory"
	EmergencyOther           = "other"
)

// Coordinates - пара широта/долгота
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Validate проверяет, что обе величины конечны и лежат в диапазонах WGS84
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// EmergencyRequest - заявка пациента. Статус меняется ровно один раз.
type EmergencyRequest struct {
	ID            uuid.UUID     `json:"id"`
	Seq           int64         `json:"seq"`
	EmergencyType string        `json:"emergency_type"`
	Coordinates   Coordinates   `json:"coordinates"`
	Address       string        `json:"address"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	RespondedAt   *time.Time    `json:"responded_at,omitempty"`

	// Повторные оповещения о заявке без ответа
	ReminderCount int        `json:"reminder_count"`
	RemindedAt    *time.Time `json:"reminded_at,omitempty"`
}

// IsKnownEmergencyType сообщает, входит ли t в список типов приложения
func IsKnownEmergencyType(t string) bool {
	switch t {
	case EmergencyCardiac, EmergencyTrafficAccident, EmergencyFall, EmergencyRespiratory, EmergencyOther:
		return true
	}
	return false
}
