package models

import "time"

// Money is an amount rendered with two decimals plus its currency.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type Address struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type LineItem struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	VariantTitle        string `json:"variant_title,omitempty"`
	SKU                 string `json:"sku,omitempty"`
	Quantity            int    `json:"quantity"`
	RefundableQuantity  int    `json:"refundable_quantity"`
	UnfulfilledQuantity int    `json:"unfulfilled_quantity"`
	UnitPrice           Money  `json:"unit_price"`
	Total               Money  `json:"total"`
	ImageURL            string `json:"image_url,omitempty"`
}

type Fulfillment struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	TrackingCompany string    `json:"tracking_company,omitempty"`
	TrackingNumber  string    `json:"tracking_number,omitempty"`
	TrackingURL     string    `json:"tracking_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type FulfillmentOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	RequestStatus string `json:"request_status,omitempty"`
	LocationName  string `json:"location_name,omitempty"`
}

type Transaction struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
	Amount  Money  `json:"amount"`
}

// Order is the detail view rendered after a scan or lookup.
type Order struct {
	ID                string             `json:"id"`
	LegacyID          string             `json:"legacy_id"`
	Name              string             `json:"name"`
	CreatedAt         time.Time          `json:"created_at"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason      string             `json:"cancel_reason,omitempty"`
	FinancialStatus   string             `json:"financial_status"`
	FulfillmentStatus string             `json:"fulfillment_status"`
	Email             string             `json:"email,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Note              string             `json:"note,omitempty"`
	Tags              []string           `json:"tags"`
	StatusPageURL     string             `json:"status_page_url,omitempty"`
	Customer          *Customer          `json:"customer,omitempty"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	Subtotal          Money              `json:"subtotal"`
	Shipping          Money              `json:"shipping"`
	Tax               Money              `json:"tax"`
	Total             Money              `json:"total"`
	Refunded          Money              `json:"refunded"`
	Outstanding       Money              `json:"outstanding"`
	LineItems         []LineItem         `json:"line_items"`
	Fulfillments      []Fulfillment      `json:"fulfillments"`
	FulfillmentOrders []FulfillmentOrder `json:"fulfillment_orders"`
	Transactions      []Transaction      `json:"transactions"`
	Cancellable       bool               `json:"cancellable"`
	Refundable        bool               `json:"refundable"`
}

// OrderSummary is one row of a list or search result.
type OrderSummary struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	CreatedAt         time.Time `json:"created_at"`
	CustomerName      string    `json:"customer_name,omitempty"`
	Email             string    `json:"email,omitempty"`
	FinancialStatus   string    `json:"financial_status"`
	FulfillmentStatus string    `json:"fulfillment_status"`
	Total             Money     `json:"total"`
	ItemCount         int       `json:"item_count"`
	Cancelled         bool      `json:"cancelled"`
}

type OrderPage struct {
	Orders      []OrderSummary `json:"orders"`
	HasNextPage bool           `json:"has_next_page"`
	EndCursor   string         `json:"end_cursor,omitempty"`
}

// ActionResult is returned by the refund/cancel/fulfillment/notify routes.
type ActionResult struct {
	OrderID string `json:"order_id"`
	Action  string `json:"action"`
	Status  string `json:"status"`
	// ResourceID is the created refund, fulfillment or cancel job id.
	ResourceID string `json:"resource_id,omitempty"`
	Message    string `json:"message,omitempty"`
}
