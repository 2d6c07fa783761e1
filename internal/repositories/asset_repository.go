package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/motionlab/backend/internal/db"
	"github.com/motionlab/backend/internal/models"
)

// PostgresBVHRepository persists BVH file references.
type PostgresBVHRepository struct {
	pool db.Pool
}

// NewPostgresBVHRepository constructs a BVH repository backed by PostgreSQL.
func NewPostgresBVHRepository(pool db.Pool) *PostgresBVHRepository {
	return &PostgresBVHRepository{pool: pool}
}

// Create records a stored BVH file.
func (r *PostgresBVHRepository) Create(ctx context.Context, file models.BVHFile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO bvh_files (id, project_id, filename, storage_key, frames, frame_time, size_bytes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, file.ID, file.ProjectID, file.Filename, file.StorageKey, file.Frames, file.FrameTime, file.SizeBytes, file.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrConflict
		case isForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("insert bvh file: %w", err)
	}
	return nil
}

// DeleteByProject removes every BVH row of a project.
func (r *PostgresBVHRepository) DeleteByProject(ctx context.Context, projectID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM bvh_files WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete bvh files: %w", err)
	}
	return nil
}

// ListByProject returns a project's BVH files ordered by filename.
func (r *PostgresBVHRepository) ListByProject(ctx context.Context, projectID string) ([]models.BVHFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, project_id, filename, storage_key, frames, frame_time, size_bytes, created_at
        FROM bvh_files
        WHERE project_id = $1
        ORDER BY filename
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query bvh files: %w", err)
	}
	defer rows.Close()

	files := []models.BVHFile{}
	for rows.Next() {
		f, err := scanBVH(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bvh file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bvh files: %w", err)
	}
	return files, nil
}

// FindByFilename loads one BVH file of a project.
func (r *PostgresBVHRepository) FindByFilename(ctx context.Context, projectID, filename string) (models.BVHFile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.BVHFile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	f, err := scanBVH(conn.QueryRow(ctx, `
        SELECT id, project_id, filename, storage_key, frames, frame_time, size_bytes, created_at
        FROM bvh_files
        WHERE project_id = $1 AND filename = $2
    `, projectID, filename))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BVHFile{}, ErrNotFound
		}
		return models.BVHFile{}, fmt.Errorf("select bvh file: %w", err)
	}
	return f, nil
}

// TotalSize sums the stored size of every BVH file.
func (r *PostgresBVHRepository) TotalSize(ctx context.Context) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COALESCE(SUM(size_bytes), 0)::BIGINT FROM bvh_files`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum bvh sizes: %w", err)
	}
	return total, nil
}

// KeysForProject lists every object key owned by a project.
func (r *PostgresBVHRepository) KeysForProject(ctx context.Context, projectID string) ([]string, error) {
	return r.keys(ctx, `
        SELECT storage_key FROM bvh_files WHERE project_id = $1
        UNION ALL
        SELECT storage_key FROM retargeted_avatars WHERE project_id = $1
    `, projectID)
}

// KeysForUser lists every object key owned by a user.
func (r *PostgresBVHRepository) KeysForUser(ctx context.Context, userID string) ([]string, error) {
	return r.keys(ctx, `
        SELECT b.storage_key FROM bvh_files b JOIN projects p ON p.id = b.project_id WHERE p.user_id = $1
        UNION ALL
        SELECT ra.storage_key FROM retargeted_avatars ra JOIN projects p ON p.id = ra.project_id WHERE p.user_id = $1
        UNION ALL
        SELECT storage_key FROM avatars WHERE user_id = $1
    `, userID)
}

func (r *PostgresBVHRepository) keys(ctx context.Context, query, id string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query storage keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect storage keys: %w", err)
	}
	return keys, nil
}

func scanBVH(row pgx.Row) (models.BVHFile, error) {
	var f models.BVHFile
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.StorageKey, &f.Frames, &f.FrameTime, &f.SizeBytes, &f.CreatedAt); err != nil {
		return models.BVHFile{}, err
	}
	f.Duration = float64(f.Frames) * f.FrameTime
	f.CreatedAt = f.CreatedAt.UTC()
	return f, nil
}

// PostgresAvatarRepository persists avatars.
type PostgresAvatarRepository struct {
	pool db.Pool
}

// NewPostgresAvatarRepository constructs an avatar repository backed by PostgreSQL.
func NewPostgresAvatarRepository(pool db.Pool) *PostgresAvatarRepository {
	return &PostgresAvatarRepository{pool: pool}
}

// Create stores an avatar. A duplicate name for the same user yields ErrConflict.
func (r *PostgresAvatarRepository) Create(ctx context.Context, avatar models.Avatar) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO avatars (id, name, user_id, filename, storage_key, source_url, creation_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, avatar.ID, avatar.Name, avatar.UserID, avatar.Filename, avatar.StorageKey, avatar.SourceURL, avatar.CreationDate)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrConflict
		case isForeignKeyViolation(err):
			return ErrNotFound
		}
		return fmt.Errorf("insert avatar: %w", err)
	}
	return nil
}

// FindForUser loads an avatar owned by userID.
func (r *PostgresAvatarRepository) FindForUser(ctx context.Context, id, userID string) (models.Avatar, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Avatar{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	a, err := scanAvatar(conn.QueryRow(ctx, `
        SELECT id, name, user_id, filename, storage_key, source_url, creation_date
        FROM avatars
        WHERE id = $1 AND user_id = $2
    `, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Avatar{}, ErrNotFound
		}
		return models.Avatar{}, fmt.Errorf("select avatar: %w", err)
	}
	return a, nil
}

// ListByUser returns a user's avatars, newest first.
func (r *PostgresAvatarRepository) ListByUser(ctx context.Context, userID string) ([]models.Avatar, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, name, user_id, filename, storage_key, source_url, creation_date
        FROM avatars
        WHERE user_id = $1
        ORDER BY creation_date DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query avatars: %w", err)
	}
	defer rows.Close()

	avatars := []models.Avatar{}
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan avatar: %w", err)
		}
		avatars = append(avatars, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate avatars: %w", err)
	}
	return avatars, nil
}

// Delete removes an avatar owned by userID.
func (r *PostgresAvatarRepository) Delete(ctx context.Context, id, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM avatars WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAvatar(row pgx.Row) (models.Avatar, error) {
	var a models.Avatar
	if err := row.Scan(&a.ID, &a.Name, &a.UserID, &a.Filename, &a.StorageKey, &a.SourceURL, &a.CreationDate); err != nil {
		return models.Avatar{}, err
	}
	a.CreationDate = a.CreationDate.UTC()
	return a, nil
}

// PostgresRetargetedAvatarRepository persists retargeted avatars.
type PostgresRetargetedAvatarRepository struct {
	pool db.Pool
}

// NewPostgresRetargetedAvatarRepository constructs a retargeted avatar repository.
func NewPostgresRetargetedAvatarRepository(pool db.Pool) *PostgresRetargetedAvatarRepository {
	return &PostgresRetargetedAvatarRepository{pool: pool}
}

const retargetColumns = `id, project_id, avatar_id, bvh_filename, filename, storage_key, creation_date, expires_at`

// Create records a retargeted avatar.
func (r *PostgresRetargetedAvatarRepository) Create(ctx context.Context, ra models.RetargetedAvatar) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO retargeted_avatars (`+retargetColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, ra.ID, ra.ProjectID, ra.AvatarID, ra.BVHFilename, ra.Filename, ra.StorageKey, ra.CreationDate, ra.ExpiresAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert retargeted avatar: %w", err)
	}
	return nil
}

// FindByID loads one retargeted avatar.
func (r *PostgresRetargetedAvatarRepository) FindByID(ctx context.Context, id string) (models.RetargetedAvatar, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.RetargetedAvatar{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	ra, err := scanRetargeted(conn.QueryRow(ctx, `SELECT `+retargetColumns+` FROM retargeted_avatars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RetargetedAvatar{}, ErrNotFound
		}
		return models.RetargetedAvatar{}, fmt.Errorf("select retargeted avatar: %w", err)
	}
	return ra, nil
}

// ListByProject returns a project's retargeted avatars, newest first.
func (r *PostgresRetargetedAvatarRepository) ListByProject(ctx context.Context, projectID string) ([]models.RetargetedAvatar, error) {
	return r.list(ctx, `SELECT `+retargetColumns+` FROM retargeted_avatars WHERE project_id = $1 ORDER BY creation_date DESC`, projectID)
}

// Delete removes one retargeted avatar.
func (r *PostgresRetargetedAvatarRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM retargeted_avatars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete retargeted avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes rows whose expiry is at or before now and returns them.
func (r *PostgresRetargetedAvatarRepository) DeleteExpired(ctx context.Context, now time.Time) ([]models.RetargetedAvatar, error) {
	return r.list(ctx, `DELETE FROM retargeted_avatars WHERE expires_at <= $1 RETURNING `+retargetColumns, now.UTC())
}

func (r *PostgresRetargetedAvatarRepository) list(ctx context.Context, query string, arg any) ([]models.RetargetedAvatar, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query retargeted avatars: %w", err)
	}
	defer rows.Close()

	out := []models.RetargetedAvatar{}
	for rows.Next() {
		ra, err := scanRetargeted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retargeted avatar: %w", err)
		}
		out = append(out, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retargeted avatars: %w", err)
	}
	return out, nil
}

func scanRetargeted(row pgx.Row) (models.RetargetedAvatar, error) {
	var ra models.RetargetedAvatar
	if err := row.Scan(&ra.ID, &ra.ProjectID, &ra.AvatarID, &ra.BVHFilename, &ra.Filename, &ra.StorageKey,
		&ra.CreationDate, &ra.ExpiresAt); err != nil {
		return models.RetargetedAvatar{}, err
	}
	ra.CreationDate = ra.CreationDate.UTC()
	ra.ExpiresAt = ra.ExpiresAt.UTC()
	return ra, nil
}

var (
	_ BVHRepository              = (*PostgresBVHRepository)(nil)
	_ StorageKeyLister           = (*PostgresBVHRepository)(nil)
	_ AvatarRepository           = (*PostgresAvatarRepository)(nil)
	_ RetargetedAvatarRepository = (*PostgresRetargetedAvatarRepository)(nil)
)
