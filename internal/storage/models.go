package storage

import "time"

// TargetKind names the variant of a link target.
type TargetKind string

const (
	TargetAsset      TargetKind = "asset"
	TargetCollection TargetKind = "collection"
)

// Target is what a link points to. It is either an AssetRef or a CollectionRef.
type Target interface {
	Kind() TargetKind
	TargetID() string
	isTarget()
}

// AssetRef points at an uploaded file.
type AssetRef struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	PublicPath string `json:"public_path"`
}

func (AssetRef) Kind() TargetKind   { return TargetAsset }
func (a AssetRef) TargetID() string { return a.ID }
func (AssetRef) isTarget()          {}

// CollectionRef points at a named group of assets.
type CollectionRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (CollectionRef) Kind() TargetKind   { return TargetCollection }
func (c CollectionRef) TargetID() string { return c.ID }
func (CollectionRef) isTarget()          {}

// LinkRecord is one shareable short link with its access policy.
type LinkRecord struct {
	ID      string
	Slug    string
	OwnerID string
	Target  Target

	// PasswordHash is a bcrypt hash; empty means the link is not password-gated.
	PasswordHash string
	ExpiresAt    *time.Time
	MaxViews     *int64
	ViewCount    int64
	IsActive     bool

	// AllowedEmails is kept for owners but not enforced on resolution.
	AllowedEmails []string

	LastViewedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the link is password-gated.
func (l *LinkRecord) HasPassword() bool {
	return l.PasswordHash != ""
}

// EventType is the kind of access recorded for a link.
type EventType string

const (
	EventView     EventType = "view"
	EventDownload EventType = "download"
)

// AccessEvent is one successful resolution, appended to the analytics sink.
type AccessEvent struct {
	ID          string     `json:"id"`
	LinkID      string     `json:"link_id"`
	TargetID    string     `json:"target_id"`
	TargetKind  TargetKind `json:"target_kind"`
	EventType   EventType  `json:"event_type"`
	Timestamp   time.Time  `json:"timestamp"`
	ClientIP    string     `json:"client_ip"`
	UserAgent   string     `json:"user_agent"`
	Referrer    string     `json:"referrer"`
	UTMSource   string     `json:"utm_source,omitempty"`
	UTMMedium   string     `json:"utm_medium,omitempty"`
	UTMCampaign string     `json:"utm_campaign,omitempty"`
	Country     string     `json:"country,omitempty"`
	City        string     `json:"city,omitempty"`
}
