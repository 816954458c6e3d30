// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (requests, receipts, credentials, outcomes, error
// kinds) and contracts (interfaces) only.
package domain
