// Package handler provides HTTP request handlers for the REST API.
package handler

import "github.com/vyrodovalexey/store-catalog/internal/model"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
	Stores int    `json:"stores"`
	Items  int    `json:"items"`
}

// EventPublisher receives committed catalog mutations.
type EventPublisher interface {
	Publish(event model.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Event) {}
