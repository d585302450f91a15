// Package models defines the domain types for Raido.
package models

// MaxImages is the maximum number of images a single item may reference.
const MaxImages = 6

// Item represents a tracked todo item.
//
// ID and Created are assigned by the system at creation time and are
// immutable. Images, when present, holds 1..MaxImages blob keys owned
// exclusively by this item; an absent list is equivalent to empty.
type Item struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Created     int64    `json:"created"` // milliseconds since epoch
	Completed   bool     `json:"completed"`
	Images      []string `json:"images,omitempty"`
}
