package http

import "time"

// DataResponse is the success envelope; every 2xx JSON body is {"data": ...}.
type DataResponse struct {
	Data any `json:"data"`
}

type MessageData struct {
	Message string `json:"message"`
}

type VerifyData struct {
	Message    string `json:"message"`
	IsVerified bool   `json:"is_verified"`
}

type LoginData struct {
	AccessToken string `json:"accessToken"`
	CSRFToken   string `json:"csrfToken"`
}

type RefreshData struct {
	AccessToken string `json:"accessToken"`
}

type CVListItem struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

type UploadCVData struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Message      string `json:"message"`
}
