// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// TransportStatus describes where a batch sits in the delivery lifecycle. In
// Go a type declared via "type X string" creates a new named type with string
// as the underlying representation, enabling better type safety than using
// plain strings.
type TransportStatus string

const (
	StatusInTransit TransportStatus = "InTransit"
	StatusDelivered TransportStatus = "Delivered"
)

// Valid reports whether the status is one of the known transport states.
func (s TransportStatus) Valid() bool {
	return s == StatusInTransit || s == StatusDelivered
}

// BatchRecord is the unit of truth for one registered agricultural batch.
// Struct tags such as `json:"batchId"` instruct the encoding/json package to
// use custom field names when marshalling/unmarshalling.
type BatchRecord struct {
	BatchID    string  `json:"batchId"`
	FarmerName string  `json:"farmerName"`
	CropName   string  `json:"cropName"`
	// Quantity is measured in kilograms and must be positive.
	Quantity    float64   `json:"quantity"`
	Location    string    `json:"location"`
	HarvestDate time.Time `json:"harvestDate"`
	// Fingerprint is the hex-encoded SHA-256 digest over the batch
	// attributes. Immutable once set; recomputable for verification.
	Fingerprint string `json:"fingerprint"`
	// AnchorReference identifies the external anchoring transaction, or a
	// locally synthesized stand-in when anchoring was unavailable. It is
	// never empty.
	AnchorReference    string          `json:"anchorReference"`
	AnchorFallbackUsed bool            `json:"anchorFallbackUsed"`
	TransportStatus    TransportStatus `json:"transportStatus"`
	// time.Time represents instants in UTC with nanosecond precision.
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
