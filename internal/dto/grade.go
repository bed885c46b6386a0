package dto

// FileResponse is a rendered document streamed back to the client.
type FileResponse struct {
	Filename    string
	ContentType string
	Data        []byte
}
