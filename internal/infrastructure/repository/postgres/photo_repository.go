package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PhotoRepository answers ownership questions against the photo table.
// The table is owned by the library service; this side only reads it.
type PhotoRepository struct {
	db *sql.DB
}

func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// VerifyOwnership returns the subset of photoIDs currently owned by the
// user. IDs absent from the result were deleted or reassigned since
// indexing and must be excluded from the response.
func (r *PhotoRepository) VerifyOwnership(
	ctx context.Context,
	photoIDs []string,
	userID string,
) (map[string]struct{}, error) {
	if len(photoIDs) == 0 {
		return map[string]struct{}{}, nil
	}

	placeholders := make([]string, 0, len(photoIDs))
	args := make([]any, 0, len(photoIDs)+1)
	args = append(args, userID)
	for i, id := range photoIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	query := fmt.Sprintf(`
SELECT id
FROM photos
WHERE user_id = $1 AND deleted_at IS NULL AND id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("verify ownership: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]struct{}, len(photoIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photo ids: %w", err)
	}
	return owned, nil
}
