package model

import "errors"

const (
	MaxImageSizeBytes  = 5 * 1024 * 1024 // 5MB per upload
	AvatarWidth        = 500
	AvatarHeight       = 500
	AvatarFolder       = "avatars"
	CoverWidth         = 1200
	CoverHeight        = 630
	CoverFolder        = "posts"
	ImageExt           = ".jpg"
	ImageQuality       = 80
	ImageCacheControl  = "public, max-age=31536000" // 1 year
	AvatarFormField    = "avatar"
	PostImageFormField = "image"
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Domain errors for media operations
var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidImageType  = errors.New("invalid image type")
	ErrMediaDisabled     = errors.New("image uploads are not configured")
	ErrInvalidMultipart  = errors.New("invalid multipart form")
	ErrInvalidJSONBody   = errors.New("invalid request body")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ImageSpec describes how an uploaded image is normalised before storage.
type ImageSpec struct {
	Folder string
	Width  int
	Height int
}

var (
	AvatarImage = ImageSpec{Folder: AvatarFolder, Width: AvatarWidth, Height: AvatarHeight}
	CoverImage  = ImageSpec{Folder: CoverFolder, Width: CoverWidth, Height: CoverHeight}
)

// UploadResult represents the uploaded object location
// URL is the public-facing URL (using R2 public endpoint)
// Key is the object key inside the bucket (useful for future deletes)
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
