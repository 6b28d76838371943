package core

import "github.com/book-expert/events"

// DocumentUploadedEvent announces that a document blob is available in the
// document bucket and requests speech synthesis for it.
type DocumentUploadedEvent struct {
	Header      events.EventHeader `json:"Header"`
	DocumentKey string             `json:"DocumentKey"`
	Format      Format             `json:"Format"`
	Mode        Mode               `json:"Mode"`
}

// AudioCreatedEvent is the reply published once synthesis finished. AudioKey
// points into the audio bucket.
type AudioCreatedEvent struct {
	Header       events.EventHeader `json:"Header"`
	AudioKey     string             `json:"AudioKey"`
	Mime         MimeFormat         `json:"Mime"`
	SizeBytes    int64              `json:"SizeBytes"`
	Language     Language           `json:"Language"`
	Confidence   float64            `json:"Confidence"`
	UsedFallback bool               `json:"UsedFallback"`
}
