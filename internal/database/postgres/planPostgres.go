package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/lib/pq"
)

type planRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) PlanRepository {
	return &planRepository{db: db}
}

const planColumns = `id, venue_id, name, description, price, duration_days, features,
	is_popular, is_active, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertPlan(ctx context.Context, db execer, plan *entity.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.ExecContext(ctx, query,
		plan.ID,
		plan.VenueID,
		plan.Name,
		plan.Description,
		plan.Price,
		plan.DurationDays,
		pq.Array(plan.Features),
		plan.IsPopular,
		plan.IsActive,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func scanPlan(row rowScanner) (*entity.Plan, error) {
	var p entity.Plan
	err := row.Scan(
		&p.ID,
		&p.VenueID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.DurationDays,
		pq.Array(&p.Features),
		&p.IsPopular,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepository) Create(ctx context.Context, plan *entity.Plan) error {
	return insertPlan(ctx, r.db, plan)
}

func (r *planRepository) GetByID(ctx context.Context, id string) (*entity.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

func (r *planRepository) GetByVenue(ctx context.Context, venueID string) ([]*entity.Plan, error) {
	byVenue, err := r.GetByVenues(ctx, []string{venueID})
	if err != nil {
		return nil, err
	}
	return byVenue[venueID], nil
}

// GetByVenues loads plans for several venues with a single query, cheapest first
func (r *planRepository) GetByVenues(ctx context.Context, venueIDs []string) (map[string][]*entity.Plan, error) {
	result := make(map[string][]*entity.Plan, len(venueIDs))
	if len(venueIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE venue_id = ANY($1) ORDER BY price, created_at`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(venueIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		result[plan.VenueID] = append(result[plan.VenueID], plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return result, nil
}

func (r *planRepository) UpdatePrice(ctx context.Context, id string, price float64, at time.Time) error {
	query := `UPDATE plans SET price = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, price, at, id)
	if err != nil {
		return fmt.Errorf("failed to update plan price: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrPlanNotFound
	}
	return nil
}
