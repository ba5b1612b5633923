package repository

import (
	"context"
	"database/sql"

	"github.com/letterstack/ms-go-account/app/entity"
)

type CVRepository struct {
	db *sql.DB
}

func NewCVRepository(db *sql.DB) *CVRepository {
	return &CVRepository{db: db}
}

func (r *CVRepository) Create(ctx context.Context, cv *entity.UserCV) error {
	query := `
		INSERT INTO user_cvs (id, user_id, s3_key, original_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		cv.ID,
		cv.UserID,
		cv.S3Key,
		cv.OriginalName,
		cv.CreatedAt,
	)
	return err
}

func (r *CVRepository) ListByUser(ctx context.Context, userID uint64) ([]entity.UserCV, error) {
	query := `
		SELECT id, user_id, s3_key, original_name, created_at
		FROM user_cvs WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cvs := []entity.UserCV{}
	for rows.Next() {
		var cv entity.UserCV
		if err := rows.Scan(&cv.ID, &cv.UserID, &cv.S3Key, &cv.OriginalName, &cv.CreatedAt); err != nil {
			return nil, err
		}
		cvs = append(cvs, cv)
	}
	return cvs, rows.Err()
}

// FindByID scopes the lookup to the owning user so one account can never
// address another account's upload.
func (r *CVRepository) FindByID(ctx context.Context, userID uint64, id string) (*entity.UserCV, error) {
	query := `
		SELECT id, user_id, s3_key, original_name, created_at
		FROM user_cvs WHERE id = $1 AND user_id = $2
	`
	cv := &entity.UserCV{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&cv.ID,
		&cv.UserID,
		&cv.S3Key,
		&cv.OriginalName,
		&cv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cv, nil
}

// Delete removes the row and reports whether anything was deleted.
func (r *CVRepository) Delete(ctx context.Context, userID uint64, id string) (bool, error) {
	query := `DELETE FROM user_cvs WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
