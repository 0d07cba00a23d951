// internal/domain/catalog/entity.go
package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceListing is a fixed-price service offered by a freelancer
type ServiceListing struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FreelancerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"freelancer_id"`
	Category     string          `gorm:"size:100;index" json:"category"`
	Title        string          `gorm:"not null;size:255" json:"title"`
	Description  string          `gorm:"type:text" json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	DeliveryDays int             `gorm:"not null;default:7" json:"delivery_days"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	Image        string          `gorm:"size:500" json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (ServiceListing) TableName() string {
	return "service_listings"
}

// BeforeCreate assigns the primary key
func (s *ServiceListing) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *ServiceListing) UnitPrice() decimal.Decimal { return s.Price }
func (s *ServiceListing) DisplayTitle() string       { return s.Title }
func (s *ServiceListing) Summary() string            { return s.Description }
func (s *ServiceListing) ItemType() string           { return "Service" }
func (s *ServiceListing) ImageURL() string           { return s.Image }

// MentorshipStatus represents the booking state of a mentorship session
type MentorshipStatus string

const (
	MentorshipStatusOpen      MentorshipStatus = "open"
	MentorshipStatusBooked    MentorshipStatus = "booked"
	MentorshipStatusCompleted MentorshipStatus = "completed"
	MentorshipStatusCanceled  MentorshipStatus = "canceled"
)

// MentorshipSession is a time-boxed session priced per minute
type MentorshipSession struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	MentorID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"mentor_id"`
	MenteeID        *uuid.UUID       `gorm:"type:uuid;index" json:"mentee_id,omitempty"`
	Topic           string           `gorm:"not null;size:255" json:"topic"`
	StartTime       time.Time        `gorm:"not null" json:"start_time"`
	DurationMinutes int              `gorm:"not null" json:"duration_minutes"`
	RatePerMinute   decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"rate_per_minute"`
	Status          MentorshipStatus `gorm:"size:20;default:'open'" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (MentorshipSession) TableName() string {
	return "mentorship_sessions"
}

// BeforeCreate assigns the primary key
func (m *MentorshipSession) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// UnitPrice is rate_per_minute * duration_minutes
func (m *MentorshipSession) UnitPrice() decimal.Decimal {
	return m.RatePerMinute.Mul(decimal.NewFromInt(int64(m.DurationMinutes)))
}

func (m *MentorshipSession) DisplayTitle() string {
	return "Mentorship: " + m.Topic
}

func (m *MentorshipSession) Summary() string {
	return fmt.Sprintf("Mentorship session about '%s', duration %d minutes.", m.Topic, m.DurationMinutes)
}

func (m *MentorshipSession) ItemType() string { return "Mentorship Session" }
