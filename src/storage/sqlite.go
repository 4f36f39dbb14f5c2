package storage

import (
	"context"
	"database/sql"
	"fmt"

	"coinvest/src/helpers"
	"coinvest/src/logger"
	"coinvest/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLiteDB initialized successfully (%s)", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT UNIQUE NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS investments (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			plan_id         TEXT NOT NULL DEFAULT '',
			amount          REAL NOT NULL,
			currency        TEXT NOT NULL,
			status          TEXT NOT NULL,
			expected_return REAL NOT NULL DEFAULT 0,
			actual_return   REAL NOT NULL DEFAULT 0,
			created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_investments_user_status
			ON investments (user_id, status);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			category   TEXT NOT NULL,
			read       INTEGER NOT NULL DEFAULT 0,
			payload    TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
			ON notifications (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS auth_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
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

func (d *SQLiteDB) InvestmentsForValuation(ctx context.Context, userID string) ([]models.MInvestment, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, plan_id, amount, currency, status, expected_return, actual_return, created_at
		FROM investments
		WHERE user_id = ? AND status IN (?, ?)
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

func (d *SQLiteDB) SaveNotification(ctx context.Context, n *models.MNotification) error {
	payload, err := encodePayload(n.Payload)
	if err != nil {
		return err
	}

	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO notifications (user_id, title, message, category, read, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Category, n.Read, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	n.ID = fmt.Sprintf("%d", id)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) NotificationsForUser(ctx context.Context, userID string, limit int) ([]models.MNotification, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, title, message, category, read, payload, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return helpers.NotFound(fmt.Sprintf("notification %s not found", id))
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id FROM users WHERE active = 1`)
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

func (d *SQLiteDB) UserIDForToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := d.DB.QueryRowContext(ctx, `
		SELECT user_id FROM auth_tokens
		WHERE token = ? AND expires_at > CURRENT_TIMESTAMP`,
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

func (d *SQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
