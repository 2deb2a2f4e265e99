// Package server exposes the HTTP surface: snapshot query, mutation
// ingestion, websocket subscription, and observability endpoints.
package server
