package model

import (
	"encoding/json"
	"time"
)

// Wire naming on these types follows the storefront's existing client
// contract, which mixes camelCase and snake_case per field. Do not
// "fix" the tags; the React client depends on them as-is.

type Layout struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	BasePrice    float64 `json:"base_price"`
	Price1Mo     float64 `json:"price_1mo"`
	Price3Mo     float64 `json:"price_3mo"`
	Price6Mo     float64 `json:"price_6mo"`
	Price1Yr     float64 `json:"price_1yr"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	IsActive     bool    `json:"is_active"`
}

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	FileURL      string    `json:"file_url"`
	FileType     string    `json:"file_type,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Purchase struct {
	LayoutID         string          `json:"layoutId"`
	PurchaseDate     time.Time       `json:"purchaseDate"`
	ExpiryDate       time.Time       `json:"expiryDate"`
	DurationLabel    string          `json:"durationLabel"`
	PricePaid        float64         `json:"pricePaid"`
	PublicToken      string          `json:"publicToken"`
	SavedThemeConfig json.RawMessage `json:"savedThemeConfig,omitempty"`
	ThumbnailURL     string          `json:"thumbnail_url,omitempty"`
	LayoutName       string          `json:"layoutName,omitempty"`
	OrderID          string          `json:"orderId,omitempty"`
	PaymentMethod    string          `json:"paymentMethod,omitempty"`
}

type ProductPurchase struct {
	ID                 int64     `json:"id"`
	ProductID          int64     `json:"product_id"`
	ProductName        string    `json:"product_name"`
	ProductDescription string    `json:"product_description,omitempty"`
	PricePaid          float64   `json:"price_paid"`
	OrderID            string    `json:"order_id,omitempty"`
	PurchasedAt        time.Time `json:"purchased_at"`
	FileURL            string    `json:"file_url"`
	FileType           string    `json:"file_type,omitempty"`
	ThumbnailURL       string    `json:"thumbnail_url,omitempty"`
}

type UserProfile struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone,omitempty"`
	Age              int               `json:"age,omitempty"`
	Purchases        []Purchase        `json:"purchases"`
	ProductPurchases []ProductPurchase `json:"productPurchases"`
}

type Coupon struct {
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"` // PERCENT | FLAT
	DiscountValue float64    `json:"discount_value"`
	Description   string     `json:"description,omitempty"`
	LayoutID      string     `json:"layout_id,omitempty"`
	LayoutName    string     `json:"layout_name,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	UsageLimit    int64      `json:"usage_limit,omitempty"`
	UsageCount    int64      `json:"usage_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

type CouponCheck struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
	Type    string  `json:"type,omitempty"`
	Value   float64 `json:"value,omitempty"`
}

// Subscription is the admin-facing raw view of a subscription row,
// lock state included.
type Subscription struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	LayoutID        string     `json:"layout_id"`
	StartDate       time.Time  `json:"start_date"`
	ExpiryDate      time.Time  `json:"expiry_date"`
	PricePaid       float64    `json:"price_paid"`
	PublicToken     string     `json:"public_token"`
	OrderID         string     `json:"order_id,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	ActiveSessionID string     `json:"active_session_id,omitempty"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

type UserRecord struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Age           int       `json:"age,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsActive      bool      `json:"is_active"`
	PurchaseCount int64     `json:"purchase_count"`
	TotalSpent    float64   `json:"total_spent"`
}

type AdminStats struct {
	TotalUsers   int64        `json:"totalUsers"`
	ActiveSubs   int64        `json:"activeSubs"`
	TotalRevenue float64      `json:"totalRevenue"`
	RecentUsers  []UserRecord `json:"recentUsers"`
}

type TransactionRecord struct {
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UserName  string    `json:"user_name,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
}

type SupportQuery struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Public overlay view. Now is injected for testability; if zero,
// services use time.Now().

type ResolveRequest struct {
	Token     string
	SessionID string
	Now       time.Time
}

type ResolveResult struct {
	Found    bool
	Expired  bool
	Granted  bool
	LayoutID string
	Config   json.RawMessage
}

type HeartbeatRequest struct {
	Token     string
	SessionID string
	Now       time.Time
}

type HeartbeatResult struct {
	Renewed bool
}
