package models

import "time"

type TryonResponse struct {
	Message        string `json:"message"`
	ResultID       int64  `json:"result_id"`
	ResultFilename string `json:"result_filename"`
	ResultURL      string `json:"result_url"`
}

type ResultResponse struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	PersonPhotoID int64     `json:"person_photo_id"`
	ClothPhotoID  int64     `json:"cloth_photo_id"`
	CreatedAt     time.Time `json:"created_at"`
	ImageURL      string    `json:"image_url"`
}

type ResultsResponse struct {
	Results []ResultResponse `json:"results"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
}
