package models

type TryonRequest struct {
	PersonPhotoID int64 `json:"person_photo_id" binding:"required,gt=0" example:"12"`
	ClothPhotoID  int64 `json:"cloth_photo_id" binding:"required,gt=0" example:"3"`
}

type ListResultsQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
