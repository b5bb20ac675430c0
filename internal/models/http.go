// Package models defines the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/atinyakov/linkgate/internal/storage"
)

// LinkResponse is the public view of a link. Target fields are empty while a
// password decision is pending.
type LinkResponse struct {
	ID                string     `json:"id"`
	Slug              string     `json:"slug"`
	IsActive          bool       `json:"is_active"`
	ExpiresAt         *time.Time `json:"expires_at"`
	MaxViews          *int64     `json:"max_views"`
	ViewCount         int64      `json:"view_count"`
	PasswordProtected bool       `json:"password_protected"`
	TargetURL         string     `json:"target_url,omitempty"`
	TargetName        string     `json:"target_name,omitempty"`
	TargetType        string     `json:"target_type,omitempty"`
}

// DenialResponse is returned for every hard denial.
type DenialResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type VerifyRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

type VerifyResponse struct {
	Success    bool   `json:"success"`
	TargetURL  string `json:"target_url"`
	TargetName string `json:"target_name"`
	TargetType string `json:"target_type"`
}

// ViewResponse answers POST /links/{slug}/view. PasswordRequired means nothing was recorded.
type ViewResponse struct {
	Success          bool   `json:"success"`
	PasswordRequired bool   `json:"password_required,omitempty"`
	TargetURL        string `json:"target_url,omitempty"`
	TargetName       string `json:"target_name,omitempty"`
	TargetType       string `json:"target_type,omitempty"`
}

// PasswordPrompt tells a browser following /s/{slug} where to send the password.
type PasswordPrompt struct {
	PasswordRequired bool   `json:"password_required"`
	VerifyURL        string `json:"verify_url"`
}

// MetaResponse carries Open Graph fields for link previews.
type MetaResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
}

type CreateLinkRequest struct {
	Slug          string     `json:"slug" validate:"omitempty,slug"`
	TargetType    string     `json:"target_type" validate:"required,oneof=asset collection"`
	TargetID      string     `json:"target_id" validate:"required,max=128"`
	Password      string     `json:"password" validate:"omitempty,max=72"`
	ExpiresAt     *time.Time `json:"expires_at"`
	MaxViews      *int64     `json:"max_views" validate:"omitempty,min=0"`
	IsActive      *bool      `json:"is_active"`
	AllowedEmails []string   `json:"allowed_emails" validate:"omitempty,dive,email"`
}

type UpdateLinkRequest struct {
	Slug *string `json:"slug" validate:"omitempty,slug"`
	// Password set to "" removes the password.
	Password      *string    `json:"password" validate:"omitempty,max=72"`
	ExpiresAt     *time.Time `json:"expires_at"`
	ClearExpiry   bool       `json:"clear_expiry"`
	MaxViews      *int64     `json:"max_views" validate:"omitempty,min=0"`
	ClearMaxViews bool       `json:"clear_max_views"`
	IsActive      *bool      `json:"is_active"`
	AllowedEmails []string   `json:"allowed_emails" validate:"omitempty,dive,email"`
}

// OwnerLinkResponse is the full view of a link for its owner.
type OwnerLinkResponse struct {
	ID                string     `json:"id"`
	Slug              string     `json:"slug"`
	ShortURL          string     `json:"short_url"`
	TargetID          string     `json:"target_id"`
	TargetType        string     `json:"target_type"`
	IsActive          bool       `json:"is_active"`
	PasswordProtected bool       `json:"password_protected"`
	ExpiresAt         *time.Time `json:"expires_at"`
	MaxViews          *int64     `json:"max_views"`
	ViewCount         int64      `json:"view_count"`
	AllowedEmails     []string   `json:"allowed_emails"`
	LastViewedAt      *time.Time `json:"last_viewed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type StatsResponse struct {
	LinkID       string                `json:"link_id"`
	Slug         string                `json:"slug"`
	ViewCount    int64                 `json:"view_count"`
	LastViewedAt *time.Time            `json:"last_viewed_at"`
	RecentEvents []storage.AccessEvent `json:"recent_events"`
}
