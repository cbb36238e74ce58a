package database

import (
	"context"
	"errors"
	"fmt"

	"realtycrm/internal/model"

	"github.com/jackc/pgx/v5"
)

// Settings live in a single row with id 1.

func (db *Database) GetSettings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := db.Pool.QueryRow(ctx, `SELECT company_name, primary_color, accent_color, logo_url, dark_mode, updated_by, updated_at FROM tbl_settings WHERE id = 1`).
		Scan(&s.CompanyName, &s.PrimaryColor, &s.AccentColor, &s.LogoURL, &s.DarkMode, &s.UpdatedBy, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, ErrSettingsNotFound
		}
		return s, fmt.Errorf("database: failed to scan settings: %w", err)
	}
	return s, nil
}

func (db *Database) UpsertSettings(ctx context.Context, s model.Settings) error {
	if _, err := db.Pool.Exec(ctx, `INSERT INTO tbl_settings (id, company_name, primary_color, accent_color, logo_url, dark_mode, updated_by, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET company_name = EXCLUDED.company_name, primary_color = EXCLUDED.primary_color,
			accent_color = EXCLUDED.accent_color, logo_url = EXCLUDED.logo_url, dark_mode = EXCLUDED.dark_mode,
			updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		s.CompanyName, s.PrimaryColor, s.AccentColor, s.LogoURL, s.DarkMode, s.UpdatedBy, s.UpdatedAt); err != nil {
		return fmt.Errorf("database: failed to upsert settings: %w", err)
	}
	return nil
}
