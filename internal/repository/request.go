package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
)

const requestColumns = `id, seq, emergency_type, latitude, longitude, address, status, created_at, responded_at, reminder_count, reminded_at`

type RequestRepository struct {
	db *pgxpool.Pool
}

func NewRequestRepository(db *pgxpool.Pool) service.RequestRepository {
	return &RequestRepository{
		db: db,
	}
}

// rowScanner - общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.EmergencyRequest, error) {
	req := &models.EmergencyRequest{}
	var status string
	err := row.Scan(
		&req.ID,
		&req.Seq,
		&req.EmergencyType,
		&req.Coordinates.Latitude,
		&req.Coordinates.Longitude,
		&req.Address,
		&status,
		&req.CreatedAt,
		&req.RespondedAt,
		&req.ReminderCount,
		&req.RemindedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = models.RequestStatus(status)
	return req, nil
}

// Create сохраняет новую заявку в статусе pending
func (r *RequestRepository) Create(ctx context.Context, req *models.EmergencyRequest) error {
	query := `
		INSERT INTO emergency_requests (emergency_type, latitude, longitude, address, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, seq, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		req.EmergencyType,
		req.Coordinates.Latitude,
		req.Coordinates.Longitude,
		req.Address,
		string(models.StatusPending),
	).Scan(&req.ID, &req.Seq, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create emergency request: %w", err)
	}
	req.Status = models.StatusPending
	req.RespondedAt = nil
	return nil
}

// ConditionalUpdateStatus меняет статус одним UPDATE, только если текущий статус равен expected.
// false без ошибки означает, что условие не выполнено или заявки нет.
func (r *RequestRepository) ConditionalUpdateStatus(ctx context.Context, id uuid.UUID, newStatus, expected models.RequestStatus) (bool, error) {
	query := `
		UPDATE emergency_requests SET
			status = $2,
			responded_at = NOW()
		WHERE id = $1 AND status = $3;
	`
	cmdTag, err := r.db.Exec(ctx, query, id, string(newStatus), string(expected))
	if err != nil {
		return false, fmt.Errorf("failed to update emergency request status: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetByID возвращает заявку по UUID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmergencyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM emergency_requests WHERE id = $1;`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("emergency request with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get emergency request by id: %w", err)
	}
	return req, nil
}

// List возвращает все заявки в порядке создания
func (r *RequestRepository) List(ctx context.Context) ([]*models.EmergencyRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM emergency_requests ORDER BY seq ASC;`
	return r.query(ctx, query)
}

// ListPendingBefore возвращает заявки без ответа, созданные раньше cutoff,
// о которых не напоминали после cutoff и напомнили меньше maxReminders раз
func (r *RequestRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, maxReminders int) ([]*models.EmergencyRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM emergency_requests
		WHERE status = $1
			AND created_at < $2
			AND (reminded_at IS NULL OR reminded_at < $2)
			AND reminder_count < $3
		ORDER BY seq ASC;
	`
	return r.query(ctx, query, string(models.StatusPending), cutoff, maxReminders)
}

// MarkReminded учитывает напоминание, только если заявка все еще pending
// и счетчик равен expectedCount
func (r *RequestRepository) MarkReminded(ctx context.Context, id uuid.UUID, expectedCount int, at time.Time) (bool, error) {
	query := `
		UPDATE emergency_requests SET
			reminder_count = reminder_count + 1,
			reminded_at = $3
		WHERE id = $1 AND status = $4 AND reminder_count = $2;
	`
	cmdTag, err := r.db.Exec(ctx, query, id, expectedCount, at, string(models.StatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to record emergency request reminder: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (r *RequestRepository) query(ctx context.Context, query string, args ...any) ([]*models.EmergencyRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list emergency requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.EmergencyRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emergency request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emergency requests: %w", err)
	}
	return requests, nil
}

// Delete удаляет заявку
func (r *RequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM emergency_requests WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete emergency request: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("emergency request with id %s: %w", id, service.ErrNotFound)
	}
	return nil
}

// DeleteAll очищает таблицу и возвращает число удаленных строк
func (r *RequestRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM emergency_requests;`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete emergency requests: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
