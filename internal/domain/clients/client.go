package clients

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the provisioning lifecycle of a client.
// pending_provisioning -> active -> inactive.
type Status string

const (
	StatusPendingProvisioning Status = "pending_provisioning"
	StatusPendingOnboarding   Status = "pending_onboarding"
	StatusActive              Status = "active"
	StatusInactive            Status = "inactive"
	StatusUnknown             Status = "unknown"
)

// ParseStatus maps stored text onto a known status, StatusUnknown otherwise.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPendingProvisioning, StatusPendingOnboarding, StatusActive, StatusInactive:
		return Status(s)
	default:
		return StatusUnknown
	}
}

type Tier string

const (
	TierEntry        Tier = "entry"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierEntry, TierProfessional, TierEnterprise:
		return true
	default:
		return false
	}
}

// Client is the system-of-record row the generation gate reads.
type Client struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Slug         string         `gorm:"column:client_slug;not null;uniqueIndex" json:"client_slug"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	ContactEmail string         `gorm:"column:contact_email" json:"contact_email"`
	WebsiteType  string         `gorm:"column:website_type" json:"website_type"`
	Tier         string         `gorm:"column:tier;not null;default:'entry'" json:"tier"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ClientOnboarding is the submitted intake form. CMS keys are sealed at rest.
type ClientOnboarding struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientSlug   string    `gorm:"column:client_slug;not null;uniqueIndex" json:"client_slug"`
	ClientName   string    `gorm:"column:client_name;not null" json:"client_name"`
	ContactEmail string    `gorm:"column:contact_email;not null" json:"contact_email"`
	WebsiteType  string    `gorm:"column:website_type;not null" json:"website_type"`
	Tier         string    `gorm:"column:tier;not null" json:"tier"`
	Industry     string    `gorm:"column:industry" json:"industry,omitempty"`
	Status       string    `gorm:"column:status;not null;index" json:"status"`

	BuilderSpaceID          string `gorm:"column:builder_space_id" json:"builder_space_id,omitempty"`
	BuilderPublicKeySealed  []byte `gorm:"column:builder_public_key_sealed" json:"-"`
	BuilderPrivateKeySealed []byte `gorm:"column:builder_private_key_sealed" json:"-"`

	SubmittedBy string    `gorm:"column:submitted_by" json:"submitted_by,omitempty"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ClientOnboarding) TableName() string { return "client_onboarding" }

func (o *ClientOnboarding) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// HasSealedKeys reports whether CMS credentials were stored with the form.
func (o *ClientOnboarding) HasSealedKeys() bool {
	return o != nil && len(o.BuilderPublicKeySealed) > 0 && len(o.BuilderPrivateKeySealed) > 0
}

// OnboardingToken is a single-use, time-limited intake link.
// Valid iff unused and not expired.
type OnboardingToken struct {
	Token       string     `gorm:"column:token;primaryKey" json:"-"`
	ClientSlug  string     `gorm:"column:client_slug;not null;index" json:"client_slug"`
	RequestedBy string     `gorm:"column:requested_by" json:"requested_by,omitempty"`
	Used        bool       `gorm:"column:used;not null;default:false;index" json:"used"`
	UsedAt      *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (OnboardingToken) TableName() string { return "onboarding_tokens" }

func (t *OnboardingToken) ValidAt(now time.Time) bool {
	return t != nil && !t.Used && now.Before(t.ExpiresAt)
}
