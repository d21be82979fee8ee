package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	tokens "timeledger/internal/auth"
	"timeledger/internal/domain/auth"
	"timeledger/internal/platform/config"
	"timeledger/internal/platform/querier"
)

// Seed makes the default tenant, the permission catalogue, the three roles
// and the first owner account exist. It is safe to run on every start.
func Seed(ctx context.Context, db querier.Querier, cfg config.Config) error {
	tenantID, err := ensureTenant(ctx, db, cfg.SeedTenantName, cfg.EmailEnabled, cfg.EmailFrom)
	if err != nil {
		return fmt.Errorf("seed tenant: %w", err)
	}
	if err := ensurePermissions(ctx, db); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	roleIDs, err := ensureRoles(ctx, db, tenantID)
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	if err := ensureRolePermissions(ctx, db, roleIDs); err != nil {
		return fmt.Errorf("seed role permissions: %w", err)
	}
	if err := ensureOwner(ctx, db, tenantID, roleIDs[auth.RoleOwner], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	return nil
}

func ensureTenant(ctx context.Context, db querier.Querier, name string, emailEnabled bool, emailFrom string) (string, error) {
	var id string
	err := db.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = db.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id", name).Scan(&id)
	}
	if err != nil {
		return "", err
	}
	_, err = db.Exec(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from)
    VALUES ($1,$2,$3)
    ON CONFLICT (tenant_id) DO NOTHING
  `, id, emailEnabled, emailFrom)
	return id, err
}

func ensurePermissions(ctx context.Context, db querier.Querier) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := db.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, db querier.Querier, tenantID string) (map[string]string, error) {
	roleIDs := map[string]string{}
	for _, roleName := range auth.Roles {
		var id string
		err := db.QueryRow(ctx, `
      INSERT INTO roles (tenant_id, name) VALUES ($1, $2)
      ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id
    `, tenantID, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, db querier.Querier, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := db.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return err
		}
		permMap[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			if _, err := db.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureOwner(ctx context.Context, db querier.Querier, tenantID, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := db.QueryRow(ctx, "SELECT id FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)", tenantID, email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := tokens.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
    INSERT INTO users (tenant_id, email, full_name, password_hash, role_id)
    VALUES ($1,$2,$3,$4,$5)
  `, tenantID, email, "Owner", hash, roleID)
	return err
}
