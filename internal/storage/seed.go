package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adoptiq/internal/rbac"
)

// Seed loads a small demo dataset when the database is empty. It is
// idempotent: a database with any product is left untouched.
func (s *Store) Seed(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return fmt.Errorf("checking for existing data: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	exec := func(query string, args ...any) {
		if err == nil {
			_, err = tx.ExecContext(ctx, query, args...)
		}
	}
	id := func() string { return uuid.NewString() }
	now := time.Now().UTC().Format(time.RFC3339)

	duo, firewall, sdwan := id(), id(), id()
	exec("INSERT INTO products (id, name, description) VALUES (?, ?, ?)",
		duo, "Cisco Duo", "Multi-factor authentication and zero trust access")
	exec("INSERT INTO products (id, name, description) VALUES (?, ?, ?)",
		firewall, "Secure Firewall", "Next generation firewall")
	exec("INSERT INTO products (id, name, description) VALUES (?, ?, ?)",
		sdwan, "SD-WAN", "Software defined wide area networking")

	sase := id()
	exec("INSERT INTO solutions (id, name, description) VALUES (?, ?, ?)",
		sase, "SASE Bundle", "Secure access service edge bundle")
	exec("INSERT INTO solution_products (solution_id, product_id) VALUES (?, ?)", sase, duo)
	exec("INSERT INTO solution_products (solution_id, product_id) VALUES (?, ?)", sase, sdwan)

	sso, logging, agents := id(), id(), id()
	exec(`INSERT INTO tasks (id, product_id, name, description, est_minutes, weight, sequence_number, license_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sso, duo, "Configure SSO", "Connect the identity provider", 60, 40.0, 1, "ESSENTIAL")
	exec(`INSERT INTO tasks (id, product_id, name, description, est_minutes, weight, sequence_number, license_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		logging, duo, "Enable Logging", "Turn on audit logging", 30, 20.0, 2, "ADVANTAGE")
	exec(`INSERT INTO tasks (id, product_id, name, description, est_minutes, weight, sequence_number, license_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		agents, firewall, "Deploy Agents", "Roll out endpoint agents", 120, 50.0, 1, "ESSENTIAL")

	exec(`INSERT INTO telemetry_attributes (id, task_id, name, data_type, is_required, success_criteria)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id(), sso, "users_synced", "NUMBER", 1, `{"operator":"gt","value":0}`)
	exec(`INSERT INTO telemetry_attributes (id, task_id, name, data_type, is_required)
		VALUES (?, ?, ?, ?, ?)`,
		id(), logging, "logs_flowing", "BOOLEAN", 1)

	exec("INSERT INTO licenses (id, name, level, product_id) VALUES (?, ?, ?, ?)",
		id(), "Duo Essentials", 1, duo)
	exec("INSERT INTO licenses (id, name, level, product_id) VALUES (?, ?, ?, ?)",
		id(), "Duo Advantage", 2, duo)
	exec("INSERT INTO outcomes (id, name, description, product_id) VALUES (?, ?, ?, ?)",
		id(), "Reduce breach risk", "Phishing resistant authentication everywhere", duo)
	exec("INSERT INTO releases (id, name, level, product_id) VALUES (?, ?, ?, ?)",
		id(), "2025.1", 1.0, duo)

	acme, initech := id(), id()
	exec("INSERT INTO customers (id, name, description) VALUES (?, ?, ?)",
		acme, "Acme Corp", "Manufacturing conglomerate")
	exec("INSERT INTO customers (id, name, description) VALUES (?, ?, ?)",
		initech, "Initech", "Software company")

	acmeDuo := id()
	exec(`INSERT INTO customer_products (id, customer_id, product_id, name, license_level, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		acmeDuo, acme, duo, "Production", "ADVANTAGE", now)

	plan := id()
	exec(`INSERT INTO adoption_plans (id, customer_product_id, product_id, product_name, license_level,
		total_tasks, completed_tasks, total_weight, completed_weight, progress_percentage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan, acmeDuo, duo, "Cisco Duo", "ADVANTAGE", 2, 1, 60.0, 40.0, 66.7)

	exec(`INSERT INTO customer_tasks (id, adoption_plan_id, original_task_id, name, est_minutes, weight,
		sequence_number, license_level, status, is_complete, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id(), plan, sso, "Configure SSO", 60, 40.0, 1, "ESSENTIAL", "COMPLETED", 1, now)
	exec(`INSERT INTO customer_tasks (id, adoption_plan_id, original_task_id, name, est_minutes, weight,
		sequence_number, license_level, status, is_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id(), plan, logging, "Enable Logging", 30, 20.0, 2, "ADVANTAGE", "NOT_STARTED", 0)

	// Demo USER account scoped to Duo and Acme.
	exec("INSERT INTO user_permissions (user_id, resource_type, resource_id) VALUES (?, ?, ?)",
		"demo-user", string(rbac.ResourceProduct), duo)
	exec("INSERT INTO user_permissions (user_id, resource_type, resource_id) VALUES (?, ?, ?)",
		"demo-user", string(rbac.ResourceCustomer), acme)

	if err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	s.log.Info("seeded demo data")
	return nil
}
