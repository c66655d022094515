package api

type ErrorResponse struct {
	Error   string      `json:"error" example:"insufficient funds"`
	Details interface{} `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database,omitempty" example:"up"`
	Redis    string `json:"redis,omitempty" example:"up"`
}
