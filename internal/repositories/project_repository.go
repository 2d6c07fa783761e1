package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/motionlab/backend/internal/db"
	"github.com/motionlab/backend/internal/models"
)

const projectColumns = `id, name, user_id, status, x_sensitivity, y_sensitivity, creation_date, completed_at, failure_reason`

// PostgresProjectRepository provides PostgreSQL-backed persistence for projects.
type PostgresProjectRepository struct {
	pool db.Pool
}

// NewPostgresProjectRepository constructs a project repository backed by PostgreSQL.
func NewPostgresProjectRepository(pool db.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{pool: pool}
}

// Create stores a new project. A duplicate name for the same user yields ErrConflict.
func (r *PostgresProjectRepository) Create(ctx context.Context, project models.Project) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	project.Normalize()
	_, err = conn.Exec(ctx, `
        INSERT INTO projects (`+projectColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, project.ID, project.Name, project.UserID, project.Status, project.XSensitivity, project.YSensitivity,
		project.CreationDate, project.CompletedAt, project.FailureReason)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrConflict
		case isForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("insert project: %w", err)
	}

	return nil
}

// FindByID loads a project regardless of owner.
func (r *PostgresProjectRepository) FindByID(ctx context.Context, id string) (models.Project, error) {
	return r.findOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// FindForUser loads a project only when owned by userID.
func (r *PostgresProjectRepository) FindForUser(ctx context.Context, id, userID string) (models.Project, error) {
	return r.findOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresProjectRepository) findOne(ctx context.Context, query string, args ...any) (models.Project, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Project{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	project, err := scanProject(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, fmt.Errorf("select project: %w", err)
	}
	return project, nil
}

// ListByUser returns a user's projects, newest first.
func (r *PostgresProjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY creation_date DESC`, userID)
}

// ListProcessing returns the oldest projects still being processed.
func (r *PostgresProjectRepository) ListProcessing(ctx context.Context, limit int) ([]models.Project, error) {
	if limit <= 0 {
		limit = 3
	}
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE status = 'processing' ORDER BY creation_date ASC LIMIT $1`, limit)
}

// ListCreatedSince returns projects created at or after since, oldest first.
func (r *PostgresProjectRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Project, error) {
	return r.list(ctx, `SELECT `+projectColumns+` FROM projects WHERE creation_date >= $1 ORDER BY creation_date ASC`, since.UTC())
}

func (r *PostgresProjectRepository) list(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// ListSummaries returns every project with its owner's email, newest first.
func (r *PostgresProjectRepository) ListSummaries(ctx context.Context) ([]models.ProjectSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT p.id, p.name, p.user_id, p.status, p.x_sensitivity, p.y_sensitivity, p.creation_date,
               p.completed_at, p.failure_reason, u.email
        FROM projects p
        JOIN users u ON u.id = p.user_id
        ORDER BY p.creation_date DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query project summaries: %w", err)
	}
	defer rows.Close()

	var out []models.ProjectSummary
	for rows.Next() {
		var (
			s           models.ProjectSummary
			completedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.UserID, &s.Status, &s.XSensitivity, &s.YSensitivity, &s.CreationDate,
			&completedAt, &s.FailureReason, &s.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan project summary: %w", err)
		}
		if completedAt.Valid {
			s.CompletedAt = utcPtr(&completedAt.Time)
		}
		s.Normalize()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project summaries: %w", err)
	}
	return out, nil
}

// RecentActivity derives the activity feed from project and account creation.
func (r *PostgresProjectRepository) RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 5
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, email, action, ts FROM (
            SELECT p.id::TEXT AS id, u.email AS email, 'Created project ' || p.name AS action, p.creation_date AS ts
            FROM projects p JOIN users u ON u.id = p.user_id
            UNION ALL
            SELECT p.id::TEXT, u.email, 'Processed project ' || p.name, p.completed_at
            FROM projects p JOIN users u ON u.id = p.user_id
            WHERE p.status = 'completed' AND p.completed_at IS NOT NULL
            UNION ALL
            SELECT p.id::TEXT, u.email, 'Processing failed for ' || p.name, p.completed_at
            FROM projects p JOIN users u ON u.id = p.user_id
            WHERE p.status = 'failed' AND p.completed_at IS NOT NULL
            UNION ALL
            SELECT u.id::TEXT, u.email, 'Signed up', u.created_at
            FROM users u
        ) AS activity
        ORDER BY ts DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	events := []models.ActivityEvent{}
	for rows.Next() {
		var e models.ActivityEvent
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return events, nil
}

// MarkCompleted moves a processing project to completed.
func (r *PostgresProjectRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return r.setStatus(ctx, id, models.ProjectStatusCompleted, "", at)
}

// MarkFailed moves a processing project to failed with a reason.
func (r *PostgresProjectRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	return r.setStatus(ctx, id, models.ProjectStatusFailed, reason, at)
}

func (r *PostgresProjectRepository) setStatus(ctx context.Context, id, status, reason string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE projects
        SET status = $2, failure_reason = $3, completed_at = $4
        WHERE id = $1
    `, id, status, reason, at.UTC())
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a project. BVH files and retargeted avatars cascade.
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts aggregates projects by status.
func (r *PostgresProjectRepository) Counts(ctx context.Context) (models.ProjectCounts, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ProjectCounts{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var c models.ProjectCounts
	row := conn.QueryRow(ctx, `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'processing'),
            COUNT(*) FILTER (WHERE status = 'completed'),
            COUNT(*) FILTER (WHERE status = 'failed')
        FROM projects
    `)
	if err := row.Scan(&c.Total, &c.Processing, &c.Completed, &c.Failed); err != nil {
		return models.ProjectCounts{}, fmt.Errorf("count projects: %w", err)
	}
	return c, nil
}

// CountCreatedSince counts projects created at or after since.
func (r *PostgresProjectRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var n int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE creation_date >= $1`, since.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recent projects: %w", err)
	}
	return n, nil
}

// AverageProcessingTime averages completion time over completed projects.
func (r *PostgresProjectRepository) AverageProcessingTime(ctx context.Context) (time.Duration, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var seconds float64
	row := conn.QueryRow(ctx, `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - creation_date)))::FLOAT8, 0)
        FROM projects
        WHERE status = 'completed' AND completed_at IS NOT NULL
    `)
	if err := row.Scan(&seconds); err != nil {
		return 0, fmt.Errorf("average processing time: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func scanProject(row pgx.Row) (models.Project, error) {
	var (
		p           models.Project
		completedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.UserID, &p.Status, &p.XSensitivity, &p.YSensitivity,
		&p.CreationDate, &completedAt, &p.FailureReason); err != nil {
		return models.Project{}, err
	}
	p.CreationDate = p.CreationDate.UTC()
	if completedAt.Valid {
		p.CompletedAt = utcPtr(&completedAt.Time)
	}
	p.Normalize()
	return p, nil
}

var _ ProjectRepository = (*PostgresProjectRepository)(nil)
