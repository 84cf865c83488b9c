package models

import "time"

// SynthesisResult is the transient output of one try-on run, before it is
// persisted.
type SynthesisResult struct {
	Data              []byte
	MIMEType          string
	SuggestedFilename string
}

type ResultRecord struct {
	ID             int64
	UserID         int64
	PersonPhotoID  int64
	GarmentPhotoID int64
	Filename       string
	CreatedAt      time.Time
}

// ResultURL is the locator the HTTP layer serves result bytes from.
func ResultURL(filename string) string {
	return "/results/image/" + filename
}
