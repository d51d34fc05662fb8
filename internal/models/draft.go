// internal/models/draft.go
package models

import "strings"

// ProductDraft accumulates product fields before publishing.
type ProductDraft struct {
	Title       string   `json:"title"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	VideoURL    string   `json:"video_url"`
}

func (d ProductDraft) Clone() ProductDraft {
	clone := d
	if d.Price != nil {
		price := *d.Price
		clone.Price = &price
	}
	clone.Images = append([]string(nil), d.Images...)
	return clone
}

func (d ProductDraft) IsEmpty() bool {
	return d.Title == "" && d.Price == nil && d.Description == "" && len(d.Images) == 0 && d.VideoURL == ""
}

// Insert converts a publishable draft into a backend insert payload.
func (d ProductDraft) Insert(sellerName string) ProductInsert {
	insert := ProductInsert{
		SellerName:  sellerName,
		Title:       d.Title,
		Description: d.Description,
		Images:      append([]string(nil), d.Images...),
	}
	if d.Price != nil {
		insert.Price = *d.Price
	}
	if insert.Description == "" {
		insert.Description = DefaultDescription
	}
	if d.VideoURL != "" {
		video := d.VideoURL
		insert.VideoURL = &video
	}
	return insert
}

// BackendFailure is the structured description of a failed backend call.
type BackendFailure struct {
	Kind        FailureKind `json:"kind"`
	Code        string      `json:"code,omitempty"`
	Message     string      `json:"message,omitempty"`
	Description string      `json:"description,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	Hint        string      `json:"hint,omitempty"`
}

// Text joins every available text field, message first.
func (f BackendFailure) Text() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{f.Message, f.Description, f.Detail, f.Hint, f.Code} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

// DisplayMessage is the single most useful line for a banner.
func (f BackendFailure) DisplayMessage() string {
	switch {
	case f.Message != "":
		return f.Message
	case f.Description != "":
		return f.Description
	case f.Detail != "":
		return f.Detail
	case f.Code != "":
		return f.Code
	default:
		return "Unknown error occurred"
	}
}
