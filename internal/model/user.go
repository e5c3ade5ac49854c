package model

import "time"

// User mirrors the identity provider's principal. OwnedClassIDs is a derived
// index kept for fast listing; Class.OwnerID is the source of truth.
type User struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	Email         string    `json:"email"`
	OwnedClassIDs []string  `json:"owned_class_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpdateProfileRequest is the payload for upserting the caller's profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
}
