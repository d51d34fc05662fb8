// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/marketflow/internal/config"
	"github.com/javajoker/marketflow/internal/metrics"
	"github.com/javajoker/marketflow/internal/models"
)

var (
	ErrForbidden            = errors.New("only sellers can manage products")
	ErrConfirmationRequired = errors.New("delete requires confirmation")
	ErrNotOwner             = errors.New("product belongs to another seller")
	ErrDraftInvalid         = errors.New("Please fill in title, price, and at least one image.")

	// ErrRefreshFailed wraps a failed listing that followed a successful
	// mutation.
	ErrRefreshFailed = errors.New("refresh after write failed")
)

// ProductRepository is one round trip per call, no retries.
type ProductRepository interface {
	// List returns every product, newest first.
	List(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, insert models.ProductInsert) (*models.Product, error)
	// Delete removes the product with id. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error
}

// PostgrestProductRepository talks to the products relation through the
// BaaS REST API.
type PostgrestProductRepository struct {
	clients ClientSource
	table   string
}

func NewPostgrestProductRepository(clients ClientSource, table string) *PostgrestProductRepository {
	if table == "" {
		table = "products"
	}
	return &PostgrestProductRepository{clients: clients, table: table}
}

func (r *PostgrestProductRepository) List(ctx context.Context) ([]models.Product, error) {
	client, err := r.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := client.Select(ctx, r.table, "created_at.desc", &rows); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, models.ProductFromRecord(row))
	}
	return products, nil
}

func (r *PostgrestProductRepository) Create(ctx context.Context, insert models.ProductInsert) (*models.Product, error) {
	client, err := r.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := client.Insert(ctx, r.table, []models.ProductInsert{insert}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// RLS may hide the inserted row from the representation
		return nil, nil
	}

	product := models.ProductFromRecord(rows[0])
	return &product, nil
}

func (r *PostgrestProductRepository) Delete(ctx context.Context, id string) error {
	client, err := r.clients.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.DeleteEq(ctx, r.table, "id", id)
	return err
}

// GormProductRepository reaches the same relation over a direct Postgres
// connection.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) List(ctx context.Context) ([]models.Product, error) {
	var rows []models.ProductRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, models.ProductFromRow(row))
	}
	return products, nil
}

func (r *GormProductRepository) Create(ctx context.Context, insert models.ProductInsert) (*models.Product, error) {
	row := insert.Row()
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	product := models.ProductFromRow(row)
	return &product, nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id string) error {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		// no row can have this id
		return nil
	}
	return r.db.WithContext(ctx).Delete(&models.ProductRow{}, key).Error
}

// BackendStatus is the last classified outcome of a product operation, the
// state that selects which recovery banner a client shows.
type BackendStatus struct {
	Category  models.ErrorCategory `json:"category"`
	Message   string               `json:"message,omitempty"`
	Code      string               `json:"code,omitempty"`
	Operation string               `json:"operation,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ProductService is the product repository adapter. It records the outcome
// of the last backend call as the backend status.
type ProductService struct {
	repo          ProductRepository
	classifier    *ErrorClassifier
	contactNumber string
	maxImages     int

	mu     sync.RWMutex
	status BackendStatus
}

func NewProductService(repo ProductRepository, classifier *ErrorClassifier, cfg *config.Config) *ProductService {
	return &ProductService{
		repo:          repo,
		classifier:    classifier,
		contactNumber: cfg.Products.ContactNumber,
		maxImages:     cfg.Products.MaxImages,
		status: BackendStatus{
			Category:  models.ErrorCategoryNone,
			UpdatedAt: time.Now(),
		},
	}
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	start := time.Now()
	products, err := s.repo.List(ctx)
	metrics.BackendRequestDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail("list", err)
	}

	for i := range products {
		s.decorate(&products[i])
	}

	s.mu.Lock()
	s.status = BackendStatus{Category: models.ErrorCategoryNone, UpdatedAt: time.Now()}
	s.mu.Unlock()

	return cloneProducts(products), nil
}

// Search lists products and keeps those whose title contains query,
// ignoring case.
func (s *ProductService) Search(ctx context.Context, query string) ([]models.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}

	filtered := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), query) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ValidateDraft enforces the publish policy: title, a non-negative price and
// between one and maxImages images.
func (s *ProductService) ValidateDraft(draft models.ProductDraft) error {
	if strings.TrimSpace(draft.Title) == "" || draft.Price == nil || *draft.Price < 0 {
		return ErrDraftInvalid
	}
	if len(draft.Images) == 0 || len(draft.Images) > s.maxImages {
		return ErrDraftInvalid
	}
	return nil
}

// Create inserts the draft as owner's product and returns the refreshed
// listing.
func (s *ProductService) Create(ctx context.Context, draft models.ProductDraft, owner models.Identity) ([]models.Product, error) {
	if !owner.CanSell() {
		return nil, ErrForbidden
	}
	if err := s.ValidateDraft(draft); err != nil {
		return nil, err
	}

	start := time.Now()
	created, err := s.repo.Create(ctx, draft.Insert(owner.Username))
	metrics.BackendRequestDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail("create", err)
	}

	fields := logrus.Fields{"seller": owner.Username, "title": draft.Title}
	if created != nil {
		fields["product_id"] = created.ID
	}
	logrus.WithFields(fields).Info("Product created")

	return s.refresh(ctx)
}

// Delete removes one of owner's products and returns the refreshed listing.
// Ownership is checked against the current listing; an id that is not in
// it is a no-op.
func (s *ProductService) Delete(ctx context.Context, id string, confirmed bool, owner models.Identity) ([]models.Product, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	if !owner.CanSell() {
		return nil, ErrForbidden
	}

	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var target *models.Product
	for i := range products {
		if products[i].ID == id {
			target = &products[i]
			break
		}
	}
	if target == nil {
		return products, nil
	}
	if target.SellerName != owner.Username {
		return nil, ErrNotOwner
	}

	start := time.Now()
	err = s.repo.Delete(ctx, id)
	metrics.BackendRequestDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail("delete", err)
	}

	logrus.WithFields(logrus.Fields{"seller": owner.Username, "product_id": id}).Info("Product deleted")
	return s.refresh(ctx)
}

func (s *ProductService) refresh(ctx context.Context) ([]models.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return products, nil
}

func (s *ProductService) Status() BackendStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *ProductService) fail(operation string, err error) error {
	classified := s.classifier.Wrap(fmt.Errorf("%s products: %w", operation, err))

	s.mu.Lock()
	s.status = BackendStatus{
		Category:  classified.Category,
		Message:   classified.Message,
		Code:      classified.Code,
		Operation: operation,
		UpdatedAt: time.Now(),
	}
	s.mu.Unlock()

	metrics.BackendErrorsTotal.WithLabelValues(operation, string(classified.Category)).Inc()
	logrus.WithFields(logrus.Fields{
		"operation": operation,
		"category":  classified.Category,
		"code":      classified.Code,
	}).Warn(classified.Message)

	return classified
}

func (s *ProductService) decorate(p *models.Product) {
	if strings.TrimSpace(p.Description) == "" {
		p.Description = models.DefaultDescription
	}
	p.VideoEmbedURL = models.YouTubeEmbedURL(p.VideoURL)
	p.ContactURL = models.ContactURL(s.contactNumber, p.Title)
}

func cloneProducts(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	out := make([]models.Product, len(products))
	for i, p := range products {
		p.Images = append([]string(nil), p.Images...)
		out[i] = p
	}
	return out
}
