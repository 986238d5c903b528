package utils

import "github.com/google/uuid"

// RequestID generates a unique ID for requests and batch jobs.
func RequestID() string {
	return uuid.NewString()
}
