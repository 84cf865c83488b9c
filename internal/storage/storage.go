package storage

import (
	"errors"
	"path/filepath"
	"strings"

	"virtual-tryon-backend/internal/models"
)

// ErrObjectNotFound is returned by every store when the object is missing.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectKey maps a category and stored filename to a store-relative key,
// e.g. result/abc_result.png. Keys cannot escape the category prefix.
func ObjectKey(category models.Category, filename string) (string, error) {
	if category == "" {
		return "", errors.New("storage: category is required")
	}
	name, err := sanitizeKey(filename)
	if err != nil {
		return "", err
	}
	if strings.Contains(name, "/") {
		return "", errors.New("storage: filename must not contain a path")
	}
	return string(category) + "/" + name, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
