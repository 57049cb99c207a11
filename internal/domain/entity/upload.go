package entity

import (
	"io"
)

// UploadSurface selects the size ceilings that apply to a file.
type UploadSurface string

const (
	SurfaceChat    UploadSurface = "chats"
	SurfacePost    UploadSurface = "posts"
	SurfaceProfile UploadSurface = "profile"
)

const mb = 1024 * 1024

// Unlimited marks a kind accepted without a ceiling.
const Unlimited int64 = -1

// surfaceLimits lists the kinds each surface accepts and their ceilings.
var surfaceLimits = map[UploadSurface]map[MediaKind]int64{
	SurfaceChat: {
		MediaImage: 3 * mb,
		MediaVideo: 50 * mb,
		MediaAudio: Unlimited,
	},
	SurfacePost: {
		MediaImage: 3 * mb,
		MediaVideo: 20 * mb,
	},
	SurfaceProfile: {
		MediaImage: 5 * mb,
	},
}

// Limit reports the ceiling for kind on the surface and whether the kind is
// accepted at all.
func (s UploadSurface) Limit(kind MediaKind) (int64, bool) {
	limits, ok := surfaceLimits[s]
	if !ok {
		return 0, false
	}
	limit, ok := limits[kind]
	return limit, ok
}

func (s UploadSurface) Valid() bool {
	_, ok := surfaceLimits[s]
	return ok
}

// FileInput is a file picked by the user, not yet validated.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

func (s UploadStatus) Terminal() bool {
	return s == UploadSucceeded || s == UploadFailed
}

// UploadProgress is one event of an upload job. Exactly one event per job
// has a terminal status and it is always the last one.
type UploadProgress struct {
	Kind     MediaKind    `json:"kind"`
	Percent  int          `json:"percent"`
	Status   UploadStatus `json:"status"`
	URL      string       `json:"url,omitempty"`
	MimeType string       `json:"mime_type,omitempty"`
	Err      error        `json:"-"`
}
