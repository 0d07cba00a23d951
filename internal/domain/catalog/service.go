// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"gorm.io/gorm"
)

var (
	// ErrForbidden is returned when a user modifies an entity they do not own
	ErrForbidden = errors.New("not allowed to modify this item")
	// ErrInvalidInput is returned for create requests that fail validation
	ErrInvalidInput = errors.New("invalid catalog input")
)

// DeletionListener is told about every deleted sellable entity
type DeletionListener interface {
	OnEntityDeleted(ctx context.Context, ref purchasable.Ref) error
}

// Service handles service listing and mentorship session business logic
type Service struct {
	db        *gorm.DB
	config    *config.Config
	log       logrus.FieldLogger
	listeners []DeletionListener
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger, listeners ...DeletionListener) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		log:       log,
		listeners: listeners,
	}
}

// CreateServiceRequest represents service listing creation data
type CreateServiceRequest struct {
	Category     string          `json:"category"`
	Title        string          `json:"title" binding:"required,max=255"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	DeliveryDays int             `json:"delivery_days"`
	ImageURL     string          `json:"image_url" binding:"omitempty,max=500"`
}

// CreateMentorshipRequest represents mentorship session creation data
type CreateMentorshipRequest struct {
	Topic           string           `json:"topic" binding:"required,max=255"`
	StartTime       time.Time        `json:"start_time" binding:"required"`
	DurationMinutes int              `json:"duration_minutes" binding:"required,min=1"`
	RatePerMinute   *decimal.Decimal `json:"rate_per_minute"`
}

// ListRequest represents catalog list query parameters
type ListRequest struct {
	Page  int    `form:"page,default=1"`
	Limit int    `form:"limit,default=20"`
	Owner string `form:"owner"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// RegisterResolvers binds this service's entities into the content registry
func (s *Service) RegisterResolvers(reg *purchasable.Registry) {
	reg.Register(purchasable.KindService, s.resolveService)
	reg.Register(purchasable.KindMentorship, s.resolveMentorship)
}

func (s *Service) resolveService(ctx context.Context, id uuid.UUID) (purchasable.Purchasable, error) {
	var listing ServiceListing
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasable.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load service listing: %w", err)
	}
	return &listing, nil
}

func (s *Service) resolveMentorship(ctx context.Context, id uuid.UUID) (purchasable.Purchasable, error) {
	var session MentorshipSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasable.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load mentorship session: %w", err)
	}
	return &session, nil
}

// CreateService creates a service listing owned by freelancerID
func (s *Service) CreateService(ctx context.Context, freelancerID uuid.UUID, req *CreateServiceRequest) (*ServiceListing, error) {
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}
	if req.DeliveryDays <= 0 {
		req.DeliveryDays = 7
	}

	listing := ServiceListing{
		FreelancerID: freelancerID,
		Category:     strings.TrimSpace(req.Category),
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Price:        req.Price.Round(2),
		DeliveryDays: req.DeliveryDays,
		IsActive:     true,
		Image:        strings.TrimSpace(req.ImageURL),
	}
	if err := s.db.WithContext(ctx).Create(&listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create service listing: %w", err)
	}
	return &listing, nil
}

// GetService retrieves a single service listing by ID
func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*ServiceListing, error) {
	var listing ServiceListing
	if err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasable.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve service listing: %w", err)
	}
	return &listing, nil
}

// ListServices retrieves active service listings with pagination
func (s *Service) ListServices(ctx context.Context, req *ListRequest) ([]ServiceListing, *Pagination, error) {
	query := s.db.WithContext(ctx).Model(&ServiceListing{}).Where("is_active = ?", true)
	if req.Owner != "" {
		query = query.Where("freelancer_id = ?", req.Owner)
	}

	var listings []ServiceListing
	pagination, err := paginate(query, req, &listings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve service listings: %w", err)
	}
	return listings, pagination, nil
}

// DeleteService deletes a listing and notifies deletion listeners
func (s *Service) DeleteService(ctx context.Context, actorID uuid.UUID, isAdmin bool, id uuid.UUID) error {
	listing, err := s.GetService(ctx, id)
	if err != nil {
		return err
	}
	if listing.FreelancerID != actorID && !isAdmin {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(listing).Error; err != nil {
		return fmt.Errorf("failed to delete service listing: %w", err)
	}
	return s.notifyDeleted(ctx, purchasable.Ref{Kind: purchasable.KindService, ID: id})
}

// CreateMentorship creates a mentorship session hosted by mentorID
func (s *Service) CreateMentorship(ctx context.Context, mentorID uuid.UUID, req *CreateMentorshipRequest) (*MentorshipSession, error) {
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be at least one minute", ErrInvalidInput)
	}

	rate := s.config.Catalog.MentorshipRatePerMinute
	if req.RatePerMinute != nil {
		if !req.RatePerMinute.IsPositive() {
			return nil, fmt.Errorf("%w: rate per minute must be greater than zero", ErrInvalidInput)
		}
		rate = *req.RatePerMinute
	}

	session := MentorshipSession{
		MentorID:        mentorID,
		Topic:           strings.TrimSpace(req.Topic),
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		RatePerMinute:   rate.Round(2),
		Status:          MentorshipStatusOpen,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create mentorship session: %w", err)
	}
	return &session, nil
}

// GetMentorship retrieves a single mentorship session by ID
func (s *Service) GetMentorship(ctx context.Context, id uuid.UUID) (*MentorshipSession, error) {
	var session MentorshipSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchasable.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve mentorship session: %w", err)
	}
	return &session, nil
}

// ListMentorships retrieves mentorship sessions with pagination
func (s *Service) ListMentorships(ctx context.Context, req *ListRequest) ([]MentorshipSession, *Pagination, error) {
	query := s.db.WithContext(ctx).Model(&MentorshipSession{})
	if req.Owner != "" {
		query = query.Where("mentor_id = ?", req.Owner)
	}

	var sessions []MentorshipSession
	pagination, err := paginate(query, req, &sessions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve mentorship sessions: %w", err)
	}
	return sessions, pagination, nil
}

// DeleteMentorship deletes a session and notifies deletion listeners
func (s *Service) DeleteMentorship(ctx context.Context, actorID uuid.UUID, isAdmin bool, id uuid.UUID) error {
	session, err := s.GetMentorship(ctx, id)
	if err != nil {
		return err
	}
	if session.MentorID != actorID && !isAdmin {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(session).Error; err != nil {
		return fmt.Errorf("failed to delete mentorship session: %w", err)
	}
	return s.notifyDeleted(ctx, purchasable.Ref{Kind: purchasable.KindMentorship, ID: id})
}

func (s *Service) notifyDeleted(ctx context.Context, ref purchasable.Ref) error {
	var errs []error
	for _, l := range s.listeners {
		if err := l.OnEntityDeleted(ctx, ref); err != nil {
			s.log.WithFields(logrus.Fields{
				"kind":    ref.Kind,
				"item_id": ref.ID,
			}).WithError(err).Error("Deletion listener failed")
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("entity deleted but cleanup failed: %w", errors.Join(errs...))
	}
	return nil
}

func paginate(query *gorm.DB, req *ListRequest, dest interface{}) (*Pagination, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC, id ASC").Offset(offset).Limit(req.Limit).Find(dest).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &Pagination{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}, nil
}
