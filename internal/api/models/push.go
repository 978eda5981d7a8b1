package models

// PushRequest is the optional request body of a push. JSON or form encoded.
type PushRequest struct {
	DeviceKey string `json:"device_key,omitempty"`
	Category  string `json:"category,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
}
