package types

// ApiResponse is the standard envelope for JSON responses.
type ApiResponse struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse carries a human-readable message plus a machine-readable
// error code for programmatic handling by clients.
type ErrorResponse struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
}
