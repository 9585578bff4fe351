package dtos

type SignPhotoRequest struct {
	Path string `json:"path" validate:"required,max=512"`
}

type SignPhotoResponse struct {
	URL       string `json:"signedUrl"`
	ExpiresAt string `json:"expires_at"`
}
