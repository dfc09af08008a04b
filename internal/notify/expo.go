// Package notify рассылает push-уведомления о заявках на устройства врачей
// через шлюз Expo.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/sirupsen/logrus"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

// MaxChunkSize - максимум сообщений в одном запросе к Expo
const MaxChunkSize = 100

const (
	defaultTitle = "Nova Emergência!"
	defaultSound = "default"
)

// Payload - данные заявки, которые получает врач
type Payload struct {
	RequestID     string
	EmergencyType string
	Address       string
	Coordinates   models.Coordinates
	Reminder      bool
}

// Config - параметры диспетчера уведомлений
type Config struct {
	Host        string
	AccessToken string
	Timeout     time.Duration
	ChunkSize   int
}

// publisher - часть expo.PushClient, которая нужна диспетчеру
type publisher interface {
	PublishMultiple(messages []expo.PushMessage) ([]expo.PushResponse, error)
}

// ExpoDispatcher рассылает уведомления пачками и собирает квитанции
type ExpoDispatcher struct {
	client    publisher
	chunkSize int
	logger    *logrus.Logger
}

// NewExpoDispatcher создает диспетчер поверх expo.PushClient
func NewExpoDispatcher(cfg Config, logger *logrus.Logger) *ExpoDispatcher {
	clientCfg := &expo.ClientConfig{
		AccessToken: cfg.AccessToken,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.Host != "" {
		clientCfg.Host = cfg.Host
	}

	chunkSize := cfg.ChunkSize
	if chunkSize < 1 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}

	return &ExpoDispatcher{
		client:    expo.NewPushClient(clientCfg),
		chunkSize: chunkSize,
		logger:    logger,
	}
}

type pending struct {
	device  *models.ResponderDevice
	message expo.PushMessage
}

// Notify отправляет уведомление каждому устройству. Ошибки не прерывают рассылку,
// а попадают в отчет по каждому устройству.
func (d *ExpoDispatcher) Notify(ctx context.Context, devices []*models.ResponderDevice, payload Payload) *DeliveryReport {
	log := d.logger.WithFields(logrus.Fields{
		"component":  "notify",
		"request_id": payload.RequestID,
		"devices":    len(devices),
	})
	report := &DeliveryReport{}

	batch := make([]pending, 0, len(devices))
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.DeviceToken)
		if err != nil {
			log.WithField("device_id", device.ID).Warn("Skipping device with invalid push token")
			report.add(device, OutcomeInvalidToken, "invalid push token")
			continue
		}
		batch = append(batch, pending{device: device, message: buildMessage(token, payload)})
	}

	for start := 0; start < len(batch); start += d.chunkSize {
		end := min(start+d.chunkSize, len(batch))
		chunk := batch[start:end]

		if err := ctx.Err(); err != nil {
			for _, p := range chunk {
				report.add(p.device, OutcomeFailed, err.Error())
			}
			continue
		}

		messages := make([]expo.PushMessage, len(chunk))
		for i, p := range chunk {
			messages[i] = p.message
		}

		responses, err := d.client.PublishMultiple(messages)
		if err != nil {
			log.WithError(err).WithField("chunk_size", len(chunk)).Error("Failed to send push chunk")
			for _, p := range chunk {
				report.add(p.device, OutcomeFailed, err.Error())
			}
			continue
		}

		for i, p := range chunk {
			if i >= len(responses) {
				report.add(p.device, OutcomeFailed, "missing push ticket")
				continue
			}
			resp := responses[i]
			if err := resp.ValidateResponse(); err != nil {
				var gone *expo.DeviceNotRegisteredError
				if errors.As(err, &gone) {
					log.WithField("device_id", p.device.ID).Warn("Device is no longer registered with Expo")
					report.add(p.device, OutcomeUnregistered, err.Error())
					continue
				}
				report.add(p.device, OutcomeFailed, err.Error())
				continue
			}
			report.add(p.device, OutcomeDelivered, resp.Status)
		}
	}

	log.WithFields(logrus.Fields{
		"delivered":    report.Delivered,
		"failed":       report.Failed,
		"invalid":      report.Invalid,
		"unregistered": report.Unregistered,
	}).Info("Push notification batch finished")
	return report
}

func buildMessage(token expo.ExponentPushToken, payload Payload) expo.PushMessage {
	body := fmt.Sprintf("Solicitação de emergência recebida (%s). Endereço: %s", payload.EmergencyType, payload.Address)
	if payload.Reminder {
		body = fmt.Sprintf("Solicitação ainda aguardando resposta (%s). Endereço: %s", payload.EmergencyType, payload.Address)
	}
	return expo.PushMessage{
		To:       []expo.ExponentPushToken{token},
		Title:    defaultTitle,
		Body:     body,
		Sound:    defaultSound,
		Priority: expo.HighPriority,
		Data: map[string]string{
			"requestId":     payload.RequestID,
			"emergencyType": payload.EmergencyType,
			"address":       payload.Address,
			"latitude":      strconv.FormatFloat(payload.Coordinates.Latitude, 'f', -1, 64),
			"longitude":     strconv.FormatFloat(payload.Coordinates.Longitude, 'f', -1, 64),
		},
	}
}
