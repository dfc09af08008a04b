package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
)

// MemoryRequestStore - хранилище заявок в памяти процесса (STORE_DRIVER=memory).
// Все операции выполняются под одним мьютексом, наружу отдаются копии.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.EmergencyRequest
	seq      int64
	now      func() time.Time
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		requests: make(map[uuid.UUID]*models.EmergencyRequest),
		now:      time.Now,
	}
}

func copyRequest(req *models.EmergencyRequest) *models.EmergencyRequest {
	c := *req
	if req.RespondedAt != nil {
		t := *req.RespondedAt
		c.RespondedAt = &t
	}
	if req.RemindedAt != nil {
		t := *req.RemindedAt
		c.RemindedAt = &t
	}
	return &c
}

func (s *MemoryRequestStore) Create(_ context.Context, req *models.EmergencyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	req.ID = uuid.New()
	req.Seq = s.seq
	req.CreatedAt = s.now().UTC()
	req.Status = models.StatusPending
	req.RespondedAt = nil
	req.ReminderCount = 0
	req.RemindedAt = nil
	s.requests[req.ID] = copyRequest(req)
	return nil
}

func (s *MemoryRequestStore) ConditionalUpdateStatus(_ context.Context, id uuid.UUID, newStatus, expected models.RequestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Status != expected {
		return false, nil
	}
	now := s.now().UTC()
	req.Status = newStatus
	req.RespondedAt = &now
	return true, nil
}

func (s *MemoryRequestStore) GetByID(_ context.Context, id uuid.UUID) (*models.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("emergency request with id %s: %w", id, service.ErrNotFound)
	}
	return copyRequest(req), nil
}

func (s *MemoryRequestStore) List(_ context.Context) ([]*models.EmergencyRequest, error) {
	return s.filter(func(*models.EmergencyRequest) bool { return true }), nil
}

func (s *MemoryRequestStore) ListPendingBefore(_ context.Context, cutoff time.Time, maxReminders int) ([]*models.EmergencyRequest, error) {
	return s.filter(func(req *models.EmergencyRequest) bool {
		return req.Status == models.StatusPending &&
			req.CreatedAt.Before(cutoff) &&
			(req.RemindedAt == nil || req.RemindedAt.Before(cutoff)) &&
			req.ReminderCount < maxReminders
	}), nil
}

func (s *MemoryRequestStore) MarkReminded(_ context.Context, id uuid.UUID, expectedCount int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Status != models.StatusPending || req.ReminderCount != expectedCount {
		return false, nil
	}
	at = at.UTC()
	req.ReminderCount++
	req.RemindedAt = &at
	return true, nil
}

func (s *MemoryRequestStore) filter(keep func(*models.EmergencyRequest) bool) []*models.EmergencyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.EmergencyRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if keep(req) {
			out = append(out, copyRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *MemoryRequestStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return fmt.Errorf("emergency request with id %s: %w", id, service.ErrNotFound)
	}
	delete(s.requests, id)
	return nil
}

func (s *MemoryRequestStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.requests))
	s.requests = make(map[uuid.UUID]*models.EmergencyRequest)
	return n, nil
}

// MemoryResponderStore - реестр устройств в памяти, уникальный по токену
type MemoryResponderStore struct {
	mu      sync.Mutex
	devices map[string]*models.ResponderDevice
	now     func() time.Time
}

func NewMemoryResponderStore() *MemoryResponderStore {
	return &MemoryResponderStore{
		devices: make(map[string]*models.ResponderDevice),
		now:     time.Now,
	}
}

func (s *MemoryResponderStore) Upsert(_ context.Context, device *models.ResponderDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if existing, ok := s.devices[device.DeviceToken]; ok {
		existing.Name = device.Name
		existing.Active = device.Active
		existing.UpdatedAt = now
		*device = *existing
		return nil
	}

	device.ID = uuid.New()
	device.CreatedAt = now
	device.UpdatedAt = now
	stored := *device
	s.devices[device.DeviceToken] = &stored
	return nil
}

func (s *MemoryResponderStore) ListActive(_ context.Context) ([]*models.ResponderDevice, error) {
	return s.filter(true), nil
}

func (s *MemoryResponderStore) List(_ context.Context) ([]*models.ResponderDevice, error) {
	return s.filter(false), nil
}

func (s *MemoryResponderStore) filter(activeOnly bool) []*models.ResponderDevice {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ResponderDevice, 0, len(s.devices))
	for _, d := range s.devices {
		if activeOnly && !d.Active {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DeviceToken < out[j].DeviceToken
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryResponderStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, d := range s.devices {
		if d.ID == id {
			delete(s.devices, token)
			return nil
		}
	}
	return fmt.Errorf("responder device with id %s: %w", id, service.ErrNotFound)
}
