package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"coinvest/src/helpers"
	"coinvest/src/logger"
	"coinvest/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT UNIQUE NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS investments (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			plan_id         TEXT NOT NULL DEFAULT '',
			amount          DOUBLE PRECISION NOT NULL,
			currency        TEXT NOT NULL,
			status          TEXT NOT NULL,
			expected_return DOUBLE PRECISION NOT NULL DEFAULT 0,
			actual_return   DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_investments_user_status
			ON investments (user_id, status);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			category   TEXT NOT NULL,
			read       BOOLEAN NOT NULL DEFAULT FALSE,
			payload    TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
			ON notifications (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS auth_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := d.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) InvestmentsForValuation(ctx context.Context, userID string) ([]models.MInvestment, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, plan_id, amount, currency, status, expected_return, actual_return, created_at
		FROM investments
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY created_at`,
		userID, models.InvestmentActive, models.InvestmentCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	var out []models.MInvestment
	for rows.Next() {
		var inv models.MInvestment
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.PlanID, &inv.Amount, &inv.Currency,
			&inv.Status, &inv.ExpectedReturn, &inv.ActualReturn, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveNotification(ctx context.Context, n *models.MNotification) error {
	payload, err := encodePayload(n.Payload)
	if err != nil {
		return err
	}

	row := d.DB.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, message, category, read, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		n.UserID, n.Title, n.Message, n.Category, n.Read, payload, n.CreatedAt)

	var id int64
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.ID = fmt.Sprintf("%d", id)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) NotificationsForUser(ctx context.Context, userID string, limit int) ([]models.MNotification, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, title, message, category, read, payload, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return helpers.NotFound(fmt.Sprintf("notification %s not found", id))
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id FROM users WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) UserIDForToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := d.DB.QueryRowContext(ctx, `
		SELECT user_id FROM auth_tokens
		WHERE token = $1 AND expires_at > NOW()`,
		token).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", helpers.InvalidCredential("unknown or expired token")
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve token: %w", err)
	}
	return userID, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// -----------------------------------------------------------------------------
// Shared row helpers
// -----------------------------------------------------------------------------

func encodePayload(payload map[string]string) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return payload, nil
}

func scanNotifications(rows *sql.Rows) ([]models.MNotification, error) {
	var out []models.MNotification
	for rows.Next() {
		var n models.MNotification
		var id int64
		var payload string
		if err := rows.Scan(&id, &n.UserID, &n.Title, &n.Message, &n.Category, &n.Read, &payload, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ID = fmt.Sprintf("%d", id)

		decoded, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		n.Payload = decoded
		out = append(out, n)
	}
	return out, rows.Err()
}
