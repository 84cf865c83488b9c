package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"virtual-tryon-backend/internal/models"
)

// DatabaseClient reads photo metadata and writes result rows in the
// Supabase Postgres database.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

// PersonPhoto only returns the photo when it belongs to ownerID. A photo
// owned by someone else is reported exactly like a missing one.
func (d *DatabaseClient) PersonPhoto(ctx context.Context, photoID, ownerID int64) (*models.Photo, error) {
	photo := models.Photo{Category: models.CategoryPerson}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, filename_original, uploaded_at
		FROM person_photos
		WHERE id = $1 AND user_id = $2
	`, photoID, ownerID).Scan(
		&photo.ID, &photo.UserID, &photo.Filename, &photo.OriginalFilename, &photo.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person photo: %w", err)
	}
	return &photo, nil
}

// GarmentPhoto resolves a garment by id alone; garments are shared catalogue
// items.
func (d *DatabaseClient) GarmentPhoto(ctx context.Context, photoID int64) (*models.Photo, error) {
	photo := models.Photo{Category: models.CategoryGarment}
	var fittingType string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, filename_original, fitting_type, uploaded_at
		FROM cloth_photos
		WHERE id = $1
	`, photoID).Scan(
		&photo.ID, &photo.UserID, &photo.Filename, &photo.OriginalFilename, &fittingType, &photo.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cloth photo: %w", err)
	}
	photo.GarmentType = models.GarmentType(fittingType)
	return &photo, nil
}

func (d *DatabaseClient) RecordResult(ctx context.Context, userID, personPhotoID, garmentPhotoID int64, filename string) (*models.ResultRecord, error) {
	rec := models.ResultRecord{
		UserID:         userID,
		PersonPhotoID:  personPhotoID,
		GarmentPhotoID: garmentPhotoID,
		Filename:       filename,
	}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO result_photos (user_id, person_photo_id, cloth_photo_id, filename)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, userID, personPhotoID, garmentPhotoID, filename).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}
	return &rec, nil
}

// ListResults returns the user's results newest first.
func (d *DatabaseClient) ListResults(ctx context.Context, userID int64, limit, offset int) ([]models.ResultRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, person_photo_id, cloth_photo_id, filename, created_at
		FROM result_photos
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := []models.ResultRecord{}
	for rows.Next() {
		var r models.ResultRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.PersonPhotoID, &r.GarmentPhotoID, &r.Filename, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
