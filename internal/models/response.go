package models

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// NewErrorResponse builds an ErrorResponse
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: Error{Code: code, Message: message}}
}
