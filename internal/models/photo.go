package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when a row does not exist or is not
// visible to the requesting user.
var ErrNotFound = errors.New("record not found")

type Category string

const (
	CategoryPerson  Category = "person"
	CategoryGarment Category = "garment"
	CategoryResult  Category = "result"
)

type GarmentType string

const (
	GarmentUpper   GarmentType = "upper"
	GarmentLower   GarmentType = "lower"
	GarmentOverall GarmentType = "overall"
)

// ParseGarmentType accepts the values stored in cloth_photos.fitting_type.
func ParseGarmentType(s string) (GarmentType, error) {
	switch GarmentType(strings.ToLower(strings.TrimSpace(s))) {
	case GarmentUpper:
		return GarmentUpper, nil
	case GarmentLower:
		return GarmentLower, nil
	case GarmentOverall:
		return GarmentOverall, nil
	default:
		return "", fmt.Errorf("unknown garment type %q", s)
	}
}

// Photo is a stored source image. Filename is the generated storage name;
// OriginalFilename is whatever the uploader sent and is for display only.
type Photo struct {
	ID               int64
	UserID           int64
	Filename         string
	OriginalFilename string
	Category         Category
	GarmentType      GarmentType
	UploadedAt       time.Time
}
