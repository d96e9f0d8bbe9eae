package models

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type HeartbeatRequest struct {
	UserID string `json:"userId"`
}

type HeartbeatResponse struct {
	Success bool `json:"success"`
}

type StatusResponse struct {
	UserID string `json:"userId"`
	Status Status `json:"status"`
}

type BulkStatusRequest struct {
	UserIDs []string `json:"userIds"`
}

// BulkStatusResponse maps every requested user id to its status
type BulkStatusResponse map[string]Status

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Store     string    `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
