package models

import (
	"time"

	"github.com/google/uuid"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// ResponderDevice - зарегистрированное устройство врача для push-уведомлений
type ResponderDevice struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DeviceToken string    `json:"device_token"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsValidToken проверяет формат Expo push-токена устройства
func (d *ResponderDevice) IsValidToken() bool {
	return IsValidPushToken(d.DeviceToken)
}

// IsValidPushToken проверяет формат токена без обращения к Expo
func IsValidPushToken(token string) bool {
	_, err := expo.NewExponentPushToken(token)
	return err == nil
}
