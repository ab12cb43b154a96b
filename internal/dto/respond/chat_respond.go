package respond

type ChatRespond struct {
	Success     bool    `json:"success"`
	Response    string  `json:"response,omitempty"`
	Confidence  float64 `json:"confidence"`
	Application string  `json:"application,omitempty"`
	Intent      string  `json:"intent,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type TrainRespond struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ApplicationsRespond struct {
	Applications []string `json:"applications"`
}

type HealthRespond struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type ChatRecordRespond struct {
	Uuid        string  `json:"uuid"`
	Application string  `json:"application"`
	Message     string  `json:"message"`
	Response    string  `json:"response"`
	Intent      string  `json:"intent"`
	Confidence  float64 `json:"confidence"`
	CreatedAt   string  `json:"created_at"`
}
