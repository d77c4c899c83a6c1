package queue

import (
	"encoding/json"
	"fmt"
)

// EncodeJob builds a job body, {"type": jobType, "payload": payload}.
// A json.RawMessage payload is embedded as is.
func EncodeJob(jobType string, payload any) ([]byte, error) {
	if jobType == "" {
		return nil, ErrMissingJobType
	}
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{jobType, payload})
}

func decodeJob(body []byte) (string, any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidJobBody, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: got %T", ErrInvalidJobBody, raw)
	}
	jobType, ok := obj["type"].(string)
	if !ok {
		return "", nil, ErrMissingJobType
	}
	return jobType, obj["payload"], nil
}
