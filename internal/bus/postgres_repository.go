package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool. Position is
// stored as a pair of nullable lat/lng columns that are always written
// together.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new bus record after checking that no bus exists with
// the same normalized license plate.
//
// The check and the insert are two separate statements, so two concurrent
// creates with the same plate can both pass the check. This is a
// best-effort guard, not a hard guarantee; if the table carries a unique
// index on license_plate the resulting 23505 is mapped to
// ErrDuplicatePlate as well.
func (r *PostgresRepository) Create(ctx context.Context, b *Bus) error {
	b.LicensePlate = NormalizePlate(b.LicensePlate)
	if b.Status == "" {
		b.Status = StatusParked
	}

	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM buses WHERE license_plate = $1)", b.LicensePlate,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking plate uniqueness: %w", err)
	}
	if exists {
		return ErrDuplicatePlate
	}

	var lat, lng *float64
	if b.Position != nil {
		lat = &b.Position.Lat
		lng = &b.Position.Lng
	}

	query := `
		INSERT INTO buses (license_plate, unit_name, status, route, driver,
		                   moving_time, parked_time, is_favorite, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		b.LicensePlate,
		b.UnitName,
		b.Status,
		b.Route,
		b.Driver,
		b.MovingTime,
		b.ParkedTime,
		b.IsFavorite,
		lat,
		lng,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePlate
		}
		return fmt.Errorf("inserting bus: %w", err)
	}

	return nil
}

// GetByID retrieves a single bus by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Bus, error) {
	query := selectColumns + " WHERE id = $1"
	return r.scanOne(ctx, query, id)
}

// GetByPlate retrieves a single bus by normalized license plate. Plates
// are normalized at write time, so the lookup matches on the normalized
// form directly.
func (r *PostgresRepository) GetByPlate(ctx context.Context, plate string) (*Bus, error) {
	query := selectColumns + " WHERE license_plate = $1"
	return r.scanOne(ctx, query, NormalizePlate(plate))
}

// Update modifies mutable fields on an existing bus and refreshes
// updated_at. The license plate is not updatable here; plate changes are
// not re-checked for uniqueness and are deliberately unsupported.
// Returns ErrNotFound if no bus with that id exists.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Bus, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	addSet := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if fields.UnitName != nil {
		addSet("unit_name", *fields.UnitName)
	}
	if fields.Status != nil {
		addSet("status", *fields.Status)
	}
	if fields.ClearRoute {
		setClauses = append(setClauses, "route = NULL")
	} else if fields.Route != nil {
		addSet("route", *fields.Route)
	}
	if fields.ClearDriver {
		setClauses = append(setClauses, "driver = NULL")
	} else if fields.Driver != nil {
		addSet("driver", *fields.Driver)
	}
	if fields.MovingTime != nil {
		addSet("moving_time", *fields.MovingTime)
	}
	if fields.ParkedTime != nil {
		addSet("parked_time", *fields.ParkedTime)
	}
	if fields.IsFavorite != nil {
		addSet("is_favorite", *fields.IsFavorite)
	}
	if fields.ClearPosition {
		setClauses = append(setClauses, "lat = NULL", "lng = NULL")
	} else if fields.Position != nil {
		addSet("lat", fields.Position.Lat)
		addSet("lng", fields.Position.Lng)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE buses
		SET %s
		WHERE id = $%d
		RETURNING id, license_plate, unit_name, status, route, driver,
		          moving_time, parked_time, is_favorite, lat, lng,
		          created_at, updated_at`,
		strings.Join(setClauses, ", "), argIdx)

	return r.scanOne(ctx, query, args...)
}

// Remove hard-deletes a bus. Returns ErrNotFound if no bus with that id
// exists.
func (r *PostgresRepository) Remove(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM buses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting bus: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List retrieves a paginated, filtered list of buses. Ordering is by
// creation time with the id as a tiebreak, so pagination is deterministic
// across calls when the underlying set is unchanged.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	var conditions []string
	var args []any
	argIdx := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Route != nil {
		conditions = append(conditions, fmt.Sprintf("route = $%d", argIdx))
		args = append(args, *filter.Route)
		argIdx++
	}
	if filter.IsFavorite != nil {
		conditions = append(conditions, fmt.Sprintf("is_favorite = $%d", argIdx))
		args = append(args, *filter.IsFavorite)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM buses %s", whereClause)
	var total int
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting buses: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit

	dataQuery := fmt.Sprintf(`%s
		%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d`, selectColumns, whereClause, argIdx, argIdx+1)

	args = append(args, filter.Limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing buses: %w", err)
	}
	defer rows.Close()

	var buses []Bus
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bus rows: %w", err)
	}

	if buses == nil {
		buses = []Bus{}
	}

	totalPages, hasMore := paginate(total, filter.Page, filter.Limit)

	return &ListResult{
		Buses:      buses,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		HasMore:    hasMore,
	}, nil
}

const selectColumns = `
	SELECT id, license_plate, unit_name, status, route, driver,
	       moving_time, parked_time, is_favorite, lat, lng,
	       created_at, updated_at
	FROM buses`

// paginate derives page-count metadata from a total row count.
func paginate(total, page, limit int) (totalPages int, hasMore bool) {
	totalPages = (total + limit - 1) / limit
	hasMore = page*limit < total
	return totalPages, hasMore
}

// scanBus scans one bus row, assembling Position only when both
// coordinates are present.
func scanBus(row pgx.Row) (*Bus, error) {
	var b Bus
	var lat, lng *float64
	err := row.Scan(
		&b.ID, &b.LicensePlate, &b.UnitName, &b.Status,
		&b.Route, &b.Driver,
		&b.MovingTime, &b.ParkedTime, &b.IsFavorite,
		&lat, &lng,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		b.Position = &Position{Lat: *lat, Lng: *lng}
	}
	return &b, nil
}

// scanOne scans a single Bus row from a query. Returns ErrNotFound if no rows.
func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...any) (*Bus, error) {
	b, err := scanBus(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning bus row: %w", err)
	}
	return b, nil
}
