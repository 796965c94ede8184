package models

import "time"

type Shop struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	MyshopifyDomain string `json:"myshopify_domain"`
	PrimaryDomain   string `json:"primary_domain,omitempty"`
	CurrencyCode    string `json:"currency_code"`
	PlanName        string `json:"plan_name,omitempty"`
	TimezoneAbbr    string `json:"timezone,omitempty"`
}

// Session is a stored offline access token for one shop.
type Session struct {
	Shop        string    `json:"shop"`
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// QRCode is a recorded order share link.
type QRCode struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
