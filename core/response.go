package core

// MessageResponse is the body of greetings and every error response
type MessageResponse struct {
	Message string `json:"message"`
}
