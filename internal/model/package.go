package model

import "time"

// Package is a priced photography offering shown in the catalog.
type Package struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	PriceCents   uint32    `json:"price_cents"`
	Features     []string  `json:"features"`
	Duration     uint32    `json:"duration"`
	DurationUnit string    `json:"duration_unit"` // hours | days | weeks | months
	Images       []string  `json:"images"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DurationUnits lists the accepted values of Package.DurationUnit.
var DurationUnits = map[string]bool{"hours": true, "days": true, "weeks": true, "months": true}
