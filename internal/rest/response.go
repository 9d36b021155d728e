package rest

type ErrorResponse struct {
	Error string `json:"error"`
}
