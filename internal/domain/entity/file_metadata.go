package entity

import (
	"time"
)

// FileMetadata records an object that reached storage. Chat media that was
// uploaded but never appended still has a record here.
type FileMetadata struct {
	ID         string        `json:"id" firestore:"id"`
	URL        string        `json:"url" firestore:"url"`
	ObjectName string        `json:"object_name" firestore:"objectName"`
	Surface    UploadSurface `json:"surface" firestore:"surface"`
	Kind       MediaKind     `json:"kind" firestore:"kind"`
	UploadedBy string        `json:"uploaded_by" firestore:"uploadedBy"`
	Filename   string        `json:"filename" firestore:"filename"`
	FileType   string        `json:"file_type" firestore:"fileType"`
	FileSize   int64         `json:"file_size" firestore:"fileSize"`
	CreatedAt  time.Time     `json:"created_at" firestore:"createdAt"`
}
