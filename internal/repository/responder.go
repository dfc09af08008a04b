package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniMesquitaa/map-medical/internal/models"
	"github.com/ViniMesquitaa/map-medical/internal/service"
)

const responderColumns = `id, name, device_token, active, created_at, updated_at`

type ResponderRepository struct {
	db *pgxpool.Pool
}

func NewResponderRepository(db *pgxpool.Pool) service.ResponderRepository {
	return &ResponderRepository{
		db: db,
	}
}

// Upsert регистрирует устройство; повторный токен обновляет имя и активирует запись
func (r *ResponderRepository) Upsert(ctx context.Context, device *models.ResponderDevice) error {
	query := `
		INSERT INTO responder_devices (name, device_token, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_token) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query, device.Name, device.DeviceToken, device.Active).
		Scan(&device.ID, &device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert responder device: %w", err)
	}
	return nil
}

func (r *ResponderRepository) ListActive(ctx context.Context) ([]*models.ResponderDevice, error) {
	return r.query(ctx, `SELECT `+responderColumns+` FROM responder_devices WHERE active ORDER BY created_at;`)
}

func (r *ResponderRepository) List(ctx context.Context) ([]*models.ResponderDevice, error) {
	return r.query(ctx, `SELECT `+responderColumns+` FROM responder_devices ORDER BY created_at;`)
}

func (r *ResponderRepository) query(ctx context.Context, query string) ([]*models.ResponderDevice, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list responder devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.ResponderDevice, 0)
	for rows.Next() {
		d := &models.ResponderDevice{}
		if err := rows.Scan(&d.ID, &d.Name, &d.DeviceToken, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan responder device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responder devices: %w", err)
	}
	return devices, nil
}

func (r *ResponderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM responder_devices WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete responder device: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("responder device with id %s: %w", id, service.ErrNotFound)
	}
	return nil
}
