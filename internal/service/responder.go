package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

//go:generate mockgen -source=responder.go -destination=mocks/mock_responder.go -package=mocks

// ResponderRepository определяет контракт реестра устройств врачей
type ResponderRepository interface {
	Upsert(ctx context.Context, device *models.ResponderDevice) error
	ListActive(ctx context.Context) ([]*models.ResponderDevice, error)
	List(ctx context.Context) ([]*models.ResponderDevice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResponderService управляет реестром устройств
type ResponderService interface {
	Register(ctx context.Context, name, token string) (*models.ResponderDevice, error)
	List(ctx context.Context) ([]*models.ResponderDevice, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Seed(ctx context.Context, tokens []string) error
}

type responderService struct {
	repo   ResponderRepository
	logger *logrus.Logger
}

func NewResponderService(repo ResponderRepository, logger *logrus.Logger) ResponderService {
	return &responderService{
		repo:   repo,
		logger: logger,
	}
}

// Register регистрирует устройство. Повторная регистрация того же токена обновляет запись.
func (s *responderService) Register(ctx context.Context, name, token string) (*models.ResponderDevice, error) {
	token = strings.TrimSpace(token)
	log := s.logger.WithFields(logrus.Fields{
		"service": "responder",
		"method":  "Register",
		"name":    name,
	})
	log.Info("Attempting to register responder device")

	if !models.IsValidPushToken(token) {
		log.Warn("Rejected device with malformed push token")
		return nil, fmt.Errorf("%w: device token must look like ExponentPushToken[...]", ErrValidation)
	}

	device := &models.ResponderDevice{
		Name:        strings.TrimSpace(name),
		DeviceToken: token,
		Active:      true,
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		log.WithError(err).Error("Failed to upsert responder device")
		return nil, fmt.Errorf("service: could not register responder: %w: %w", ErrInternal, err)
	}

	log.WithField("device_id", device.ID).Info("Responder device registered")
	return device, nil
}

func (s *responderService) List(ctx context.Context) ([]*models.ResponderDevice, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"service": "responder", "method": "List"}).
			WithError(err).Error("Failed to list responder devices")
		return nil, fmt.Errorf("service: could not list responders: %w: %w", ErrInternal, err)
	}
	return devices, nil
}

func (s *responderService) Remove(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "responder",
		"method":    "Remove",
		"device_id": id,
	})

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("service: responder %s: %w", id, ErrNotFound)
		}
		log.WithError(err).Error("Failed to remove responder device")
		return fmt.Errorf("service: could not remove responder: %w: %w", ErrInternal, err)
	}
	log.Info("Responder device removed")
	return nil
}

// Seed регистрирует токены из конфигурации. Некорректные токены пропускаются с предупреждением.
func (s *responderService) Seed(ctx context.Context, tokens []string) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "responder",
		"method":  "Seed",
	})

	for i, token := range tokens {
		_, err := s.Register(ctx, fmt.Sprintf("responder-%d", i+1), token)
		if errors.Is(err, ErrValidation) {
			log.WithField("position", i+1).Warn("Skipping configured responder token")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
