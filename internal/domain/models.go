package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a number the client may send either as a JSON number or as a
// numeric string, as form inputs usually do.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return fmt.Errorf("invalid number %q", s)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if !finite(f) {
		return fmt.Errorf("invalid number %s", data)
	}
	*a = Amount(f)
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (a *Amount) Value() float64 {
	if a == nil {
		return 0
	}
	return float64(*a)
}

type Product struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
	BuyPrice  float64 `json:"buyPrice"`
	SellPrice float64 `json:"sellPrice"`
	Notes     string  `json:"notes"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

type ProductRequest struct {
	Name      string  `json:"name" validate:"required"`
	Category  string  `json:"category" validate:"required"`
	Quantity  *Amount `json:"quantity" validate:"required"`
	BuyPrice  *Amount `json:"buyPrice" validate:"required,gt=0"`
	SellPrice *Amount `json:"sellPrice" validate:"required,gt=0"`
	Notes     string  `json:"notes"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type Repair struct {
	ID            int     `json:"id"`
	CustomerName  string  `json:"customerName"`
	CustomerPhone string  `json:"customerPhone"`
	DeviceName    string  `json:"deviceName"`
	Issue         string  `json:"issue"`
	EstimatedCost float64 `json:"estimatedCost"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes"`
	Date          string  `json:"date"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt,omitempty"`
}

type RepairRequest struct {
	CustomerName  string  `json:"customerName" validate:"required"`
	CustomerPhone string  `json:"customerPhone"`
	DeviceName    string  `json:"deviceName" validate:"required"`
	Issue         string  `json:"issue" validate:"required"`
	EstimatedCost *Amount `json:"estimatedCost" validate:"required"`
	Status        string  `json:"status" validate:"required"`
	Notes         string  `json:"notes"`
}

// BillItem is one invoice line. ID references the product or repair it came
// from; custom lines carry 0.
type BillItem struct {
	ID       any    `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Quantity Amount `json:"quantity"`
	Price    Amount `json:"price"`
}

type Bill struct {
	ID            int        `json:"id"`
	BillNumber    string     `json:"billNumber"`
	BuyerName     string     `json:"buyerName"`
	BuyerPhone    string     `json:"buyerPhone"`
	BuyerEmail    string     `json:"buyerEmail"`
	BuyerAddress  string     `json:"buyerAddress"`
	Items         []BillItem `json:"items"`
	GSTEnabled    bool       `json:"gstEnabled"`
	GSTType       string     `json:"gstType"`
	CGSTRate      float64    `json:"cgstRate"`
	SGSTRate      float64    `json:"sgstRate"`
	IGSTRate      float64    `json:"igstRate"`
	PaymentMethod string     `json:"paymentMethod"`
	Notes         string     `json:"notes"`
	ShowSignature bool       `json:"showSignature"`
	Subtotal      float64    `json:"subtotal"`
	CGSTAmount    float64    `json:"cgstAmount"`
	SGSTAmount    float64    `json:"sgstAmount"`
	IGSTAmount    float64    `json:"igstAmount"`
	Total         float64    `json:"total"`
	Date          string     `json:"date"`
	CreatedAt     string     `json:"createdAt"`
}

const (
	GSTIntra = "intra"
	GSTInter = "inter"
)

// BillRequest ignores any client-computed summary; totals are recomputed.
type BillRequest struct {
	BuyerName     string     `json:"buyerName" validate:"required"`
	BuyerPhone    string     `json:"buyerPhone"`
	BuyerEmail    string     `json:"buyerEmail"`
	BuyerAddress  string     `json:"buyerAddress"`
	Items         []BillItem `json:"items" validate:"required,min=1"`
	GSTEnabled    bool       `json:"gstEnabled"`
	GSTType       string     `json:"gstType" validate:"omitempty,oneof=intra inter"`
	CGSTRate      *Amount    `json:"cgstRate"`
	SGSTRate      *Amount    `json:"sgstRate"`
	IGSTRate      *Amount    `json:"igstRate"`
	PaymentMethod string     `json:"paymentMethod"`
	Notes         string     `json:"notes"`
	ShowSignature bool       `json:"showSignature"`
}

type Other struct {
	ID           int     `json:"id"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	CustomerName string  `json:"customerName"`
	Amount       float64 `json:"amount"`
	Notes        string  `json:"notes"`
	Date         string  `json:"date"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

type OtherRequest struct {
	Category     string  `json:"category" validate:"required"`
	Description  string  `json:"description" validate:"required"`
	CustomerName string  `json:"customerName"`
	Amount       *Amount `json:"amount" validate:"required"`
	Notes        string  `json:"notes"`
}

// OtherCategory ids are row positions, not stored values.
type OtherCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ShopSettings struct {
	ShopName        string  `json:"shopName"`
	ShopPhone       string  `json:"shopPhone"`
	ShopEmail       string  `json:"shopEmail"`
	ShopGSTIN       string  `json:"shopGstin"`
	ShopAddress     string  `json:"shopAddress"`
	DefaultCGSTRate float64 `json:"defaultCgstRate"`
	DefaultSGSTRate float64 `json:"defaultSgstRate"`
	DefaultIGSTRate float64 `json:"defaultIgstRate"`
	ShopLogoURL     string  `json:"shopLogoUrl"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

const (
	DefaultCGSTRate = 9.0
	DefaultSGSTRate = 9.0
	DefaultIGSTRate = 18.0
)

type ShopSettingsRequest struct {
	ShopName        string  `json:"shopName" validate:"required"`
	ShopPhone       string  `json:"shopPhone"`
	ShopEmail       string  `json:"shopEmail"`
	ShopGSTIN       string  `json:"shopGstin"`
	ShopAddress     string  `json:"shopAddress"`
	DefaultCGSTRate *Amount `json:"defaultCgstRate"`
	DefaultSGSTRate *Amount `json:"defaultSgstRate"`
	DefaultIGSTRate *Amount `json:"defaultIgstRate"`
	ShopLogoURL     string  `json:"shopLogoUrl"`
}

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type DashboardStats struct {
	TodayRevenue    float64 `json:"todayRevenue"`
	TotalRevenue    float64 `json:"totalRevenue"`
	PendingServices int     `json:"pendingServices"`
	LowStockAlerts  int     `json:"lowStockAlerts"`
}

type ChartData struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	User      UserInfo `json:"user"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expiresAt"`
}

type ChangePasswordRequest struct {
	Username        string `json:"username" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

type VerifyOTPRequest struct {
	Email       string `json:"email" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}
