package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock,
// etc.) and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id int) (*Device, error)
	GetByClientID(ctx context.Context, clientID string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListEnabled(ctx context.Context) ([]Device, error)

	Create(ctx context.Context, device *Device) error
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id int) error

	// UpdateLiveness writes back the fields the ingress layer and the
	// camera manager's poll loop are allowed to mutate: status,
	// last_seen, and the merged values map.
	UpdateLiveness(ctx context.Context, id int, status DeviceStatus, lastSeen time.Time, values map[string]any) error

	GetModel(ctx context.Context, id int) (*DeviceModel, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository. db
// should be an open connection to the shared database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `
	id, name, model_id, topic_prefix, mqtt_client_id, enabled,
	parameters, values, cameras, status, last_seen,
	poll_interval, poll_interval_unit, created_at, updated_at`

// GetByID retrieves a device by its numeric ID, with its model joined.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	if err := r.attachModel(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetByClientID retrieves a device by its mqtt_client_id, the field
// ingress and every subsystem use to resolve an incoming message's
// owning device.
func (r *SQLiteRepository) GetByClientID(ctx context.Context, clientID string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE mqtt_client_id = ?`, clientID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by client id: %w", err)
	}
	if err := r.attachModel(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// List retrieves all devices, each with its model joined.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name`)
}

// ListEnabled retrieves only enabled devices, the set every subsystem
// subscribes to on startup and after a hot-reload.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, `SELECT `+deviceColumns+` FROM devices WHERE enabled = 1 ORDER BY name`)
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		if err := r.attachModel(ctx, d); err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

func (r *SQLiteRepository) attachModel(ctx context.Context, d *Device) error {
	if d.ModelID == 0 {
		return nil
	}
	model, err := r.GetModel(ctx, d.ModelID)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return nil
		}
		return err
	}
	d.Model = model
	return nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	paramsJSON, err := json.Marshal(d.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}
	valuesJSON, err := json.Marshal(d.Values)
	if err != nil {
		return fmt.Errorf("marshalling values: %w", err)
	}
	camerasJSON, err := json.Marshal(d.Cameras)
	if err != nil {
		return fmt.Errorf("marshalling cameras: %w", err)
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = DeviceStatusUnknown
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			name, model_id, topic_prefix, mqtt_client_id, enabled,
			parameters, values, cameras, status, last_seen,
			poll_interval, poll_interval_unit, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.ModelID, d.TopicPrefix, d.MQTTClientID, boolToInt(d.Enabled),
		string(paramsJSON), string(valuesJSON), string(camerasJSON), string(d.Status), nullableTime(d.LastSeen),
		d.PollInterval, d.PollIntervalUnit,
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	d.ID = int(id)
	return nil
}

// Update modifies an existing device's configuration fields. It does
// not touch status/last_seen/values; use UpdateLiveness for those.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	paramsJSON, err := json.Marshal(d.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}
	camerasJSON, err := json.Marshal(d.Cameras)
	if err != nil {
		return fmt.Errorf("marshalling cameras: %w", err)
	}

	d.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, model_id = ?, topic_prefix = ?, mqtt_client_id = ?,
			enabled = ?, parameters = ?, cameras = ?, poll_interval = ?, poll_interval_unit = ?,
			updated_at = ?
		WHERE id = ?`,
		d.Name, d.ModelID, d.TopicPrefix, d.MQTTClientID,
		boolToInt(d.Enabled), string(paramsJSON), string(camerasJSON), d.PollInterval, d.PollIntervalUnit,
		d.UpdatedAt.Format(time.RFC3339), d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateLiveness writes back the status, last_seen, and values fields
// the ingress layer and camera poll loop own. The core never writes
// any other device field from its runtime path.
func (r *SQLiteRepository) UpdateLiveness(ctx context.Context, id int, status DeviceStatus, lastSeen time.Time, values map[string]any) error {
	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshalling values: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, last_seen = ?, values = ?, updated_at = ? WHERE id = ?`,
		string(status), lastSeen.Format(time.RFC3339), string(valuesJSON),
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating liveness: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// GetModel retrieves a device model by ID, including its topic-schema
// definitions.
func (r *SQLiteRepository) GetModel(ctx context.Context, id int) (*DeviceModel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, topic_spec, created_at, updated_at FROM device_models WHERE id = ?`, id)

	var (
		m             DeviceModel
		topicSpecJSON sql.NullString
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(&m.ID, &m.Name, &topicSpecJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("querying device model: %w", err)
	}

	if topicSpecJSON.Valid && topicSpecJSON.String != "" {
		if err := json.Unmarshal([]byte(topicSpecJSON.String), &m.TopicSpec); err != nil {
			return nil, fmt.Errorf("unmarshalling topic_spec: %w", err)
		}
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &m, nil
}

// scanner abstracts over *sql.Row and *sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var (
		d                Device
		paramsJSON       sql.NullString
		valuesJSON       sql.NullString
		camerasJSON      sql.NullString
		enabled          int
		status           string
		lastSeen         sql.NullString
		pollIntervalUnit sql.NullString
		createdAt        string
		updatedAt        string
	)

	if err := s.Scan(
		&d.ID, &d.Name, &d.ModelID, &d.TopicPrefix, &d.MQTTClientID, &enabled,
		&paramsJSON, &valuesJSON, &camerasJSON, &status, &lastSeen,
		&d.PollInterval, &pollIntervalUnit, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	d.Enabled = enabled != 0
	d.Status = DeviceStatus(status)
	d.PollIntervalUnit = pollIntervalUnit.String

	if paramsJSON.Valid && paramsJSON.String != "" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &d.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshalling parameters: %w", err)
		}
	}
	if valuesJSON.Valid && valuesJSON.String != "" {
		if err := json.Unmarshal([]byte(valuesJSON.String), &d.Values); err != nil {
			return nil, fmt.Errorf("unmarshalling values: %w", err)
		}
	}
	if camerasJSON.Valid && camerasJSON.String != "" {
		if err := json.Unmarshal([]byte(camerasJSON.String), &d.Cameras); err != nil {
			return nil, fmt.Errorf("unmarshalling cameras: %w", err)
		}
	}
	if lastSeen.Valid && lastSeen.String != "" {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err == nil {
			d.LastSeen = &t
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
