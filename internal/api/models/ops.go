package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Info describes the running relay.
type Info struct {
	Version        string                 `json:"version"`
	BuildTime      string                 `json:"buildTime"`
	Arch           string                 `json:"arch"`
	Status         HealthStatus           `json:"status"`
	Time           Timestamp              `json:"time"`
	DefaultChannel string                 `json:"defaultChannel"`
	Channels       []ChannelStatus        `json:"channels"`
	Trigger        map[string]interface{} `json:"trigger,omitempty"`
}

// ChannelStatus represents the status of a downstream push channel.
type ChannelStatus struct {
	Channel       string       `json:"channel"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
