// internal/models/product.go
package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

const DefaultDescription = "No description provided."

type Product struct {
	ID            string     `json:"id"`
	SellerName    string     `json:"seller_name"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	Images        []string   `json:"images"`
	VideoURL      string     `json:"video_url,omitempty"`
	VideoEmbedURL string     `json:"video_embed_url,omitempty"`
	ContactURL    string     `json:"contact_url,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// ProductRow is the products relation as reached over a direct Postgres
// connection. image_url is the legacy single-image column; it is read when
// present and never migrated or written.
type ProductRow struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index:idx_products_created_at,sort:desc"`
	SellerName  string         `gorm:"column:seller_name;type:text"`
	Title       string         `gorm:"type:text"`
	Description string         `gorm:"type:text"`
	Price       float64        `gorm:"type:numeric"`
	Images      pq.StringArray `gorm:"type:text[]"`
	ImageURL    *string        `gorm:"column:image_url;->;-:migration"`
	VideoURL    *string        `gorm:"column:video_url;type:text"`
}

func (ProductRow) TableName() string {
	return "products"
}

// ProductInsert is the payload sent to the backend on create.
type ProductInsert struct {
	SellerName  string   `json:"seller_name"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	VideoURL    *string  `json:"video_url"`
}

func (p ProductInsert) Row() ProductRow {
	return ProductRow{
		SellerName:  p.SellerName,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Images:      pq.StringArray(p.Images),
		VideoURL:    p.VideoURL,
	}
}

// ProductFromRow maps a database row onto the product shape.
func ProductFromRow(row ProductRow) Product {
	product := Product{
		ID:          strconv.FormatInt(row.ID, 10),
		SellerName:  row.SellerName,
		Title:       row.Title,
		Description: row.Description,
		Price:       row.Price,
		Images:      normalizeImages([]string(row.Images), derefString(row.ImageURL)),
		VideoURL:    derefString(row.VideoURL),
	}
	if !row.CreatedAt.IsZero() {
		createdAt := row.CreatedAt
		product.CreatedAt = &createdAt
	}
	return product
}

// ProductFromRecord maps a REST row onto the product shape. Column names are
// accepted in both snake_case and camelCase since deployments differ.
func ProductFromRecord(rec map[string]interface{}) Product {
	product := Product{
		ID:          recordString(rec, "id"),
		SellerName:  firstNonEmpty(recordString(rec, "seller_name"), recordString(rec, "sellerName")),
		Title:       recordString(rec, "title"),
		Description: recordString(rec, "description"),
		Price:       recordFloat(rec, "price"),
		VideoURL:    firstNonEmpty(recordString(rec, "video_url"), recordString(rec, "videoUrl")),
	}

	legacy := firstNonEmpty(recordString(rec, "image_url"), recordString(rec, "imageUrl"))
	product.Images = normalizeImages(recordStrings(rec, "images"), legacy)

	if raw := recordString(rec, "created_at"); raw != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			product.CreatedAt = &createdAt
		}
	}
	return product
}

// YouTubeEmbedURL returns an embeddable player URL for YouTube links and an
// empty string for anything else.
func YouTubeEmbedURL(videoURL string) string {
	if !strings.Contains(videoURL, "youtube.com") && !strings.Contains(videoURL, "youtu.be") {
		return ""
	}

	u, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}

	id := u.Query().Get("v")
	if id == "" {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = segments[len(segments)-1]
	}
	if id == "" {
		return ""
	}
	return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1", url.PathEscape(id))
}

// ContactURL builds the WhatsApp deep link shown on a product card.
func ContactURL(number, title string) string {
	if number == "" {
		return ""
	}
	text := url.QueryEscape("Hi, I am interested in your product: " + title)
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, text)
}

func normalizeImages(images []string, legacy string) []string {
	out := make([]string, 0, len(images)+1)
	for _, img := range images {
		if img != "" {
			out = append(out, img)
		}
	}
	if len(out) == 0 && legacy != "" {
		out = append(out, legacy)
	}
	return out
}

func recordString(rec map[string]interface{}, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func recordFloat(rec map[string]interface{}, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func recordStrings(rec map[string]interface{}, key string) []string {
	switch v := rec[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
