package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ViniMesquitaa/map-medical/internal/config"
	"github.com/ViniMesquitaa/map-medical/internal/geocoding"
	"github.com/ViniMesquitaa/map-medical/internal/metrics"
	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/notify"
	"github.com/ViniMesquitaa/map-medical/internal/webhook"
)

//go:generate mockgen -source=dispatch.go -destination=mocks/mock_dispatch.go -package=mocks

// RequestRepository определяет контракт хранилища заявок.
// ConditionalUpdateStatus - единственный способ изменить статус.
type RequestRepository interface {
	Create(ctx context.Context, req *models.EmergencyRequest) error
	ConditionalUpdateStatus(ctx context.Context, id uuid.UUID, newStatus, expected models.RequestStatus) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmergencyRequest, error)
	List(ctx context.Context) ([]*models.EmergencyRequest, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, maxReminders int) ([]*models.EmergencyRequest, error)
	MarkReminded(ctx context.Context, id uuid.UUID, expectedCount int, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Geocoder переводит координаты в адрес
type Geocoder interface {
	Resolve(ctx context.Context, coords models.Coordinates) (string, error)
}

// Notifier рассылает push-уведомления врачам
type Notifier interface {
	Notify(ctx context.Context, devices []*models.ResponderDevice, payload notify.Payload) *notify.DeliveryReport
}

// RoutingPolicy выбирает, каким устройствам отправить заявку
type RoutingPolicy interface {
	Select(req *models.EmergencyRequest, devices []*models.ResponderDevice) []*models.ResponderDevice
}

// BroadcastPolicy отправляет заявку всем активным устройствам
type BroadcastPolicy struct{}

func (BroadcastPolicy) Select(_ *models.EmergencyRequest, devices []*models.ResponderDevice) []*models.ResponderDevice {
	return devices
}

// DispatchService определяет контракт бизнес-логики диспетчеризации
type DispatchService interface {
	Submit(ctx context.Context, emergencyType string, coords models.Coordinates) (*SubmitResult, error)
	Respond(ctx context.Context, id uuid.UUID, decision models.RequestStatus) (*models.EmergencyRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.EmergencyRequest, error)
	ListHistory(ctx context.Context) ([]*models.EmergencyRequest, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveAll(ctx context.Context) (int64, error)
	RemindPending(ctx context.Context, olderThan time.Duration) (int, error)
}

// SubmitResult - сохраненная заявка и некритичные проблемы, возникшие по пути
type SubmitResult struct {
	Request  *models.EmergencyRequest
	Warnings []string
	Delivery *notify.DeliveryReport
}

const defaultMaxReminders = 3

// DispatchOption настраивает dispatchService
type DispatchOption func(*dispatchService)

// WithRoutingPolicy заменяет BroadcastPolicy
func WithRoutingPolicy(p RoutingPolicy) DispatchOption {
	return func(s *dispatchService) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) DispatchOption {
	return func(s *dispatchService) {
		s.now = now
	}
}

type dispatchService struct {
	requests   RequestRepository
	responders ResponderRepository
	geocoder   Geocoder
	notifier   Notifier
	publisher  webhook.WebhookPublisher
	metrics    *metrics.Dispatch
	policy     RoutingPolicy
	logger     *logrus.Logger
	cfg        *config.Config
	now        func() time.Time
}

// NewDispatchService собирает сервис. publisher и m могут быть nil.
func NewDispatchService(
	requests RequestRepository,
	responders ResponderRepository,
	geocoder Geocoder,
	notifier Notifier,
	publisher webhook.WebhookPublisher,
	m *metrics.Dispatch,
	logger *logrus.Logger,
	cfg *config.Config,
	opts ...DispatchOption,
) DispatchService {
	s := &dispatchService{
		requests:   requests,
		responders: responders,
		geocoder:   geocoder,
		notifier:   notifier,
		publisher:  publisher,
		metrics:    m,
		policy:     BroadcastPolicy{},
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit сохраняет заявку и оповещает врачей. Ошибки геокодирования и доставки
// не отменяют заявку, а возвращаются как предупреждения.
func (s *dispatchService) Submit(ctx context.Context, emergencyType string, coords models.Coordinates) (*SubmitResult, error) {
	emergencyType = strings.TrimSpace(emergencyType)
	log := s.logger.WithFields(logrus.Fields{
		"service":        "dispatch",
		"method":         "Submit",
		"emergency_type": emergencyType,
	})
	log.Info("Attempting to submit a new emergency request")

	if emergencyType == "" {
		return nil, fmt.Errorf("%w: emergency type is required", ErrValidation)
	}
	if err := coords.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	result := &SubmitResult{}

	address, err := s.geocoder.Resolve(ctx, coords)
	if err != nil {
		reason := geocoding.Reason(err)
		log.WithError(err).WithField("reason", reason).Warn("Geocoding failed, using coordinate fallback")
		s.metrics.GeocodeFallback(reason)
		address = geocoding.FallbackAddress(coords)
		result.Warnings = append(result.Warnings, "address could not be resolved: "+reason)
	}

	req := &models.EmergencyRequest{
		EmergencyType: emergencyType,
		Coordinates:   coords,
		Address:       address,
		Status:        models.StatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		log.WithError(err).Error("Failed to create request in repository")
		return nil, fmt.Errorf("service: could not create request: %w: %w", ErrInternal, err)
	}
	result.Request = req
	log = log.WithField("request_id", req.ID)
	log.Info("Emergency request persisted")

	label := req.EmergencyType
	if !models.IsKnownEmergencyType(label) {
		label = models.EmergencyOther
	}
	s.metrics.RequestSubmitted(label)

	// Заявка уже сохранена: уведомление не должно зависеть от отмены клиентского запроса
	report, warnings := s.notifyResponders(context.WithoutCancel(ctx), req, false)
	result.Delivery = report
	result.Warnings = append(result.Warnings, warnings...)

	s.publish(ctx, req, log)
	return result, nil
}

// Respond выполняет ровно один условный переход pending -> decision
func (s *dispatchService) Respond(ctx context.Context, id uuid.UUID, decision models.RequestStatus) (*models.EmergencyRequest, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "dispatch",
		"method":     "Respond",
		"request_id": id,
		"decision":   decision,
	})
	log.Info("Attempting to record responder decision")

	if !decision.IsTerminal() {
		return nil, fmt.Errorf("%w: response must be accepted or rejected", ErrValidation)
	}

	// Начатое обновление доводится до конца даже при обрыве соединения
	ctx = context.WithoutCancel(ctx)

	applied, err := s.requests.ConditionalUpdateStatus(ctx, id, decision, models.StatusPending)
	if err != nil {
		log.WithError(err).Error("Failed to update request status in repository")
		return nil, fmt.Errorf("service: could not update request status: %w: %w", ErrInternal, err)
	}

	current, getErr := s.requests.GetByID(ctx, id)
	if !applied {
		if errors.Is(getErr, ErrNotFound) {
			log.Warn("Attempted to respond to a non-existent request")
			s.metrics.ResponseRecorded("not_found")
			return nil, fmt.Errorf("service: request %s: %w", id, ErrNotFound)
		}
		if getErr != nil {
			log.WithError(getErr).Error("Failed to re-read request after rejected update")
			return nil, fmt.Errorf("service: could not get request: %w: %w", ErrInternal, getErr)
		}
		log.WithField("current_status", current.Status).Warn("Request already answered")
		s.metrics.ResponseRecorded("conflict")
		return current, &ConflictError{RequestID: id, Current: current.Status}
	}

	if getErr != nil {
		// Переход уже применен, ответ строим без повторного чтения
		log.WithError(getErr).Warn("Failed to re-read request after update")
		respondedAt := s.now().UTC()
		current = &models.EmergencyRequest{ID: id, Status: decision, RespondedAt: &respondedAt}
	}

	s.metrics.ResponseRecorded(string(decision))
	log.Info("Responder decision recorded")
	s.publish(ctx, current, log)
	return current, nil
}

// GetRequest возвращает заявку по ID
func (s *dispatchService) GetRequest(ctx context.Context, id uuid.UUID) (*models.EmergencyRequest, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "dispatch",
		"method":     "GetRequest",
		"request_id": id,
	})

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("service: request %s: %w", id, ErrNotFound)
		}
		log.WithError(err).Error("Failed to get request in repository")
		return nil, fmt.Errorf("service: could not get request: %w: %w", ErrInternal, err)
	}
	return req, nil
}

// ListHistory возвращает все заявки в порядке создания
func (s *dispatchService) ListHistory(ctx context.Context) ([]*models.EmergencyRequest, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "dispatch",
		"method":  "ListHistory",
	})
	log.Info("Listing emergency requests")

	requests, err := s.requests.List(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list requests from repository")
		return nil, fmt.Errorf("service: could not list requests: %w: %w", ErrInternal, err)
	}

	log.WithField("count", len(requests)).Info("Requests listed successfully")
	return requests, nil
}

// Remove удаляет одну заявку
func (s *dispatchService) Remove(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "dispatch",
		"method":     "Remove",
		"request_id": id,
	})
	log.Info("Attempting to remove request")

	if err := s.requests.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("Attempted to remove a non-existent request")
			return fmt.Errorf("service: request %s: %w", id, ErrNotFound)
		}
		log.WithError(err).Error("Failed to remove request in repository")
		return fmt.Errorf("service: could not remove request: %w: %w", ErrInternal, err)
	}

	log.Info("Request removed successfully")
	return nil
}

// RemoveAll очищает историю и возвращает число удаленных заявок
func (s *dispatchService) RemoveAll(ctx context.Context) (int64, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "dispatch",
		"method":  "RemoveAll",
	})
	log.Info("Attempting to remove all requests")

	n, err := s.requests.DeleteAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to remove all requests in repository")
		return 0, fmt.Errorf("service: could not remove requests: %w: %w", ErrInternal, err)
	}

	log.WithField("deleted", n).Info("All requests removed")
	return n, nil
}

// RemindPending повторно оповещает врачей о заявках, которые ждут ответа дольше olderThan.
// Об одной заявке напоминаем не чаще раза в olderThan и не больше cfg.ReminderMax раз.
func (s *dispatchService) RemindPending(ctx context.Context, olderThan time.Duration) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "dispatch",
		"method":     "RemindPending",
		"older_than": olderThan.String(),
	})

	maxReminders := defaultMaxReminders
	if s.cfg != nil {
		maxReminders = s.cfg.ReminderMax
	}
	if maxReminders <= 0 {
		return 0, nil
	}

	now := s.now().UTC()
	cutoff := now.Add(-olderThan)
	pending, err := s.requests.ListPendingBefore(ctx, cutoff, maxReminders)
	if err != nil {
		log.WithError(err).Error("Failed to list pending requests")
		return 0, fmt.Errorf("service: could not list pending requests: %w: %w", ErrInternal, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	log.WithField("count", len(pending)).Info("Sending reminders for pending requests")
	reminded := 0
	for _, req := range pending {
		if ctx.Err() != nil {
			break
		}
		// Сначала фиксируем напоминание: заявку, на которую уже ответили, пропускаем
		claimed, err := s.requests.MarkReminded(ctx, req.ID, req.ReminderCount, now)
		if err != nil {
			log.WithError(err).WithField("request_id", req.ID).Error("Failed to record reminder")
			return reminded, fmt.Errorf("service: could not record reminder: %w: %w", ErrInternal, err)
		}
		if !claimed {
			continue
		}
		if _, warnings := s.notifyResponders(ctx, req, true); len(warnings) > 0 {
			log.WithFields(logrus.Fields{"request_id": req.ID, "warnings": warnings}).Warn("Reminder delivered with warnings")
		}
		reminded++
	}
	return reminded, ctx.Err()
}

func (s *dispatchService) notifyResponders(ctx context.Context, req *models.EmergencyRequest, reminder bool) (*notify.DeliveryReport, []string) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "dispatch",
		"method":     "notifyResponders",
		"request_id": req.ID,
		"reminder":   reminder,
	})

	if s.cfg != nil && s.cfg.PushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PushTimeout)
		defer cancel()
	}

	devices, err := s.responders.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load responder devices")
		return nil, []string{"responders could not be notified: registry unavailable"}
	}

	targets := s.policy.Select(req, devices)
	if len(targets) == 0 {
		log.Warn("No responder devices to notify")
		return &notify.DeliveryReport{}, []string{"no responders registered"}
	}

	report := s.notifier.Notify(ctx, targets, notify.Payload{
		RequestID:     req.ID.String(),
		EmergencyType: req.EmergencyType,
		Address:       req.Address,
		Coordinates:   req.Coordinates,
		Reminder:      reminder,
	})
	if report == nil {
		return nil, []string{"push delivery status unknown"}
	}

	s.metrics.PushDelivery(string(notify.OutcomeDelivered), report.Delivered)
	s.metrics.PushDelivery(string(notify.OutcomeFailed), report.Failed)
	s.metrics.PushDelivery(string(notify.OutcomeInvalidToken), report.Invalid)
	s.metrics.PushDelivery(string(notify.OutcomeUnregistered), report.Unregistered)

	if !report.HasFailures() {
		return report, nil
	}
	log.WithFields(logrus.Fields{
		"delivered":    report.Delivered,
		"failed":       report.Failed,
		"invalid":      report.Invalid,
		"unregistered": report.Unregistered,
	}).Warn("Some responders were not notified")

	var warnings []string
	if report.Failed > 0 {
		warnings = append(warnings, fmt.Sprintf("push delivery failed for %d of %d responders", report.Failed, len(targets)))
	}
	if report.Invalid > 0 {
		warnings = append(warnings, fmt.Sprintf("%d responder devices have invalid push tokens", report.Invalid))
	}
	if report.Unregistered > 0 {
		warnings = append(warnings, fmt.Sprintf("%d responder devices are no longer registered", report.Unregistered))
		s.deactivate(ctx, targets, report.DevicesWith(notify.OutcomeUnregistered), log)
	}
	return report, warnings
}

// deactivate выключает устройства, которые Expo больше не обслуживает.
// Повторная регистрация токена снова делает устройство активным.
func (s *dispatchService) deactivate(ctx context.Context, targets []*models.ResponderDevice, ids []uuid.UUID, log *logrus.Entry) {
	gone := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	for _, d := range targets {
		if _, ok := gone[d.ID]; !ok {
			continue
		}
		device := &models.ResponderDevice{Name: d.Name, DeviceToken: d.DeviceToken, Active: false}
		if err := s.responders.Upsert(ctx, device); err != nil {
			log.WithError(err).WithField("device_id", d.ID).Error("Failed to deactivate responder device")
			continue
		}
		log.WithField("device_id", d.ID).Warn("Responder device deactivated")
	}
}

func (s *dispatchService) publish(ctx context.Context, req *models.EmergencyRequest, log *logrus.Entry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), webhook.NewDispatchEvent(req)); err != nil {
		log.WithError(err).Error("Failed to publish webhook event")
	}
}
