package dto

import "github.com/noah-isme/tclass-api/internal/models"

// EnrollResponse is returned by the public enrollment endpoint.
type EnrollResponse struct {
	Enrollment *models.Enrollment `json:"enrollment"`
	CORNumber  string             `json:"cor_number"`
	Message    string             `json:"message"`
}

// DownloadLinkResponse carries a signed, expiring download URL.
type DownloadLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
