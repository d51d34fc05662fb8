// internal/services/draft_service.go
package services

import (
	"context"
	"errors"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/models"
	"github.com/javajoker/marketflow/internal/utils"
)

var (
	ErrImageNotFound      = errors.New("image not found")
	ErrDescribeIncomplete = errors.New("Please enter a title and price first")
	ErrInvalidVideoURL    = errors.New("video url must be an http(s) link")
	ErrDraftNegativePrice = errors.New("price must not be negative")
)

// DraftUpdate carries the text fields of the product form. Nil fields are
// left unchanged.
type DraftUpdate struct {
	Title       *string  `json:"title" validate:"omitempty,max=255"`
	Price       *float64 `json:"price"`
	ClearPrice  bool     `json:"clear_price"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	VideoURL    *string  `json:"video_url"`
}

type DraftView struct {
	Draft       models.ProductDraft `json:"draft"`
	MaxImages   int                 `json:"max_images"`
	Publishable bool                `json:"publishable"`
	Rejections  []ImageRejection    `json:"rejections,omitempty"`
}

// DraftService keeps one product form per session.
type DraftService struct {
	drafts      *registry[*models.ProductDraft]
	storage     *StorageService
	description *DescriptionService
	products    *ProductService
	maxImages   int
}

func NewDraftService(cfg *config.Config, storage *StorageService, description *DescriptionService, products *ProductService, sessions *SessionService) *DraftService {
	s := &DraftService{
		drafts:      newRegistry[*models.ProductDraft]("draft", cfg.Products.DraftIdleTTL),
		storage:     storage,
		description: description,
		products:    products,
		maxImages:   cfg.Products.MaxImages,
	}
	sessions.OnLogout(s.discard)
	return s
}

// Close stops the idle-draft janitor.
func (s *DraftService) Close() {
	s.drafts.close()
}

func (s *DraftService) Get(sessionID string) DraftView {
	var view DraftView
	_ = s.with(sessionID, func(d *models.ProductDraft) error {
		view = s.view(d, nil)
		return nil
	})
	return view
}

func (s *DraftService) Update(sessionID string, update DraftUpdate) (DraftView, error) {
	if err := utils.ValidateStruct(&update); err != nil {
		return DraftView{}, err
	}
	if update.Price != nil && *update.Price < 0 {
		return DraftView{}, ErrDraftNegativePrice
	}
	if update.VideoURL != nil && !validVideoURL(*update.VideoURL) {
		return DraftView{}, ErrInvalidVideoURL
	}

	var view DraftView
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		if update.Title != nil {
			d.Title = *update.Title
		}
		if update.ClearPrice {
			d.Price = nil
		} else if update.Price != nil {
			price := *update.Price
			d.Price = &price
		}
		if update.Description != nil {
			d.Description = *update.Description
		}
		if update.VideoURL != nil {
			d.VideoURL = strings.TrimSpace(*update.VideoURL)
		}
		view = s.view(d, nil)
		return nil
	})
	return view, err
}

// AddImages ingests uploaded files into the free image slots, preserving
// the order in which they were selected.
func (s *DraftService) AddImages(ctx context.Context, sessionID string, files []*multipart.FileHeader) (DraftView, error) {
	var view DraftView
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		images, rejections, err := s.storage.IngestImages(ctx, files, s.maxImages-len(d.Images))
		if err != nil {
			return err
		}
		d.Images = append(d.Images, images...)
		view = s.view(d, rejections)
		return nil
	})
	return view, err
}

// AddImageURLs appends remote image references, up to the free slots.
func (s *DraftService) AddImageURLs(sessionID string, urls []string) (DraftView, error) {
	var view DraftView
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		var rejections []ImageRejection
		for i, ref := range urls {
			ref = strings.TrimSpace(ref)
			switch {
			case len(d.Images) >= s.maxImages:
				rejections = append(rejections, ImageRejection{Index: i, Name: ref, Reason: RejectOverLimit})
			case !utils.IsImageRef(ref):
				rejections = append(rejections, ImageRejection{Index: i, Name: ref, Reason: RejectInvalid})
			default:
				d.Images = append(d.Images, ref)
			}
		}
		view = s.view(d, rejections)
		return nil
	})
	return view, err
}

func (s *DraftService) RemoveImage(ctx context.Context, sessionID string, index int) (DraftView, error) {
	var view DraftView
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		if index < 0 || index >= len(d.Images) {
			return ErrImageNotFound
		}
		removed := d.Images[index]
		d.Images = append(d.Images[:index:index], d.Images[index+1:]...)
		s.storage.Release(ctx, removed)
		view = s.view(d, nil)
		return nil
	})
	return view, err
}

// Describe asks the generative-text collaborator for a description and
// stores it in the draft. It needs a title and a price.
func (s *DraftService) Describe(ctx context.Context, sessionID string) (DraftView, error) {
	var view DraftView
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		if strings.TrimSpace(d.Title) == "" || d.Price == nil {
			return ErrDescribeIncomplete
		}
		d.Description = s.description.Suggest(ctx, d.Title, *d.Price)
		view = s.view(d, nil)
		return nil
	})
	return view, err
}

// Publish creates the product and returns the refreshed listing. The draft
// is cleared once the insert has gone through.
func (s *DraftService) Publish(ctx context.Context, sessionID string, owner models.Identity) ([]models.Product, error) {
	var products []models.Product
	err := s.with(sessionID, func(d *models.ProductDraft) error {
		var err error
		products, err = s.products.Create(ctx, d.Clone(), owner)
		if err == nil || errors.Is(err, ErrRefreshFailed) {
			*d = models.ProductDraft{}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"session": sessionID, "seller": owner.Username}).Info("Draft published")
	return products, nil
}

// Cancel discards the draft and any images uploaded for it.
func (s *DraftService) Cancel(ctx context.Context, sessionID string) DraftView {
	s.discard(ctx, sessionID)
	return s.view(&models.ProductDraft{}, nil)
}

func (s *DraftService) discard(ctx context.Context, sessionID string) {
	_ = s.drafts.with(sessionID, func(d **models.ProductDraft) error {
		for _, ref := range (*d).Images {
			s.storage.Release(ctx, ref)
		}
		**d = models.ProductDraft{}
		return nil
	})
	s.drafts.remove(sessionID)
}

func (s *DraftService) with(sessionID string, fn func(d *models.ProductDraft) error) error {
	return s.drafts.withOrCreate(sessionID, func() *models.ProductDraft {
		return &models.ProductDraft{}
	}, func(d **models.ProductDraft) error {
		return fn(*d)
	})
}

func (s *DraftService) view(d *models.ProductDraft, rejections []ImageRejection) DraftView {
	draft := d.Clone()
	if draft.Images == nil {
		draft.Images = []string{}
	}
	return DraftView{
		Draft:       draft,
		MaxImages:   s.maxImages,
		Publishable: s.products.ValidateDraft(draft) == nil,
		Rejections:  rejections,
	}
}

func validVideoURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
