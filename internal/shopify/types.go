package shopify

import "time"

// Upstream response shapes, limited to the fields the templates select.

type MoneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type MoneyBag struct {
	ShopMoney MoneyV2 `json:"shopMoney"`
}

type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type Shop struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	MyshopifyDomain string `json:"myshopifyDomain"`
	PrimaryDomain   struct {
		Host string `json:"host"`
		URL  string `json:"url"`
	} `json:"primaryDomain"`
	CurrencyCode string `json:"currencyCode"`
	Plan         struct {
		DisplayName string `json:"displayName"`
	} `json:"plan"`
	TimezoneAbbreviation string `json:"timezoneAbbreviation"`
}

type ShopInfoData struct {
	Shop Shop `json:"shop"`
}

type OrderNode struct {
	ID                               string     `json:"id"`
	Name                             string     `json:"name"`
	CreatedAt                        time.Time  `json:"createdAt"`
	CancelledAt                      *time.Time `json:"cancelledAt"`
	Email                            string     `json:"email"`
	DisplayFinancialStatus           string     `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus         string     `json:"displayFulfillmentStatus"`
	CurrentSubtotalLineItemsQuantity int        `json:"currentSubtotalLineItemsQuantity"`
	Customer                         *struct {
		DisplayName string `json:"displayName"`
	} `json:"customer"`
	TotalPriceSet MoneyBag `json:"totalPriceSet"`
}

type OrderConnection struct {
	PageInfo PageInfo    `json:"pageInfo"`
	Nodes    []OrderNode `json:"nodes"`
}

type OrderListData struct {
	Orders OrderConnection `json:"orders"`
}

type Customer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

type MailingAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type LineItem struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	VariantTitle         string   `json:"variantTitle"`
	SKU                  string   `json:"sku"`
	Quantity             int      `json:"quantity"`
	RefundableQuantity   int      `json:"refundableQuantity"`
	UnfulfilledQuantity  int      `json:"unfulfilledQuantity"`
	OriginalUnitPriceSet MoneyBag `json:"originalUnitPriceSet"`
	DiscountedTotalSet   MoneyBag `json:"discountedTotalSet"`
	Image                *struct {
		URL string `json:"url"`
	} `json:"image"`
}

type TrackingInfo struct {
	Company string `json:"company"`
	Number  string `json:"number"`
	URL     string `json:"url"`
}

type Fulfillment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	TrackingInfo []TrackingInfo `json:"trackingInfo"`
}

type FulfillmentOrder struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	RequestStatus    string `json:"requestStatus"`
	AssignedLocation struct {
		Name     string `json:"name"`
		Location *struct {
			ID string `json:"id"`
		} `json:"location"`
	} `json:"assignedLocation"`
}

type Transaction struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Status    string   `json:"status"`
	Gateway   string   `json:"gateway"`
	AmountSet MoneyBag `json:"amountSet"`
}

type Order struct {
	ID                       string          `json:"id"`
	LegacyResourceID         string          `json:"legacyResourceId"`
	Name                     string          `json:"name"`
	CreatedAt                time.Time       `json:"createdAt"`
	CancelledAt              *time.Time      `json:"cancelledAt"`
	CancelReason             string          `json:"cancelReason"`
	DisplayFinancialStatus   string          `json:"displayFinancialStatus"`
	DisplayFulfillmentStatus string          `json:"displayFulfillmentStatus"`
	Email                    string          `json:"email"`
	Phone                    string          `json:"phone"`
	Note                     string          `json:"note"`
	Tags                     []string        `json:"tags"`
	StatusPageURL            string          `json:"statusPageUrl"`
	Customer                 *Customer       `json:"customer"`
	ShippingAddress          *MailingAddress `json:"shippingAddress"`
	SubtotalPriceSet         MoneyBag        `json:"subtotalPriceSet"`
	TotalShippingPriceSet    MoneyBag        `json:"totalShippingPriceSet"`
	TotalTaxSet              MoneyBag        `json:"totalTaxSet"`
	TotalPriceSet            MoneyBag        `json:"totalPriceSet"`
	TotalRefundedSet         MoneyBag        `json:"totalRefundedSet"`
	TotalOutstandingSet      MoneyBag        `json:"totalOutstandingSet"`
	LineItems                struct {
		Nodes []LineItem `json:"nodes"`
	} `json:"lineItems"`
	Fulfillments      []Fulfillment `json:"fulfillments"`
	FulfillmentOrders struct {
		Nodes []FulfillmentOrder `json:"nodes"`
	} `json:"fulfillmentOrders"`
	Transactions []Transaction `json:"transactions"`
}

type OrderByIDData struct {
	Order *Order `json:"order"`
}

type RefundCreateData struct {
	RefundCreate struct {
		Refund *struct {
			ID               string   `json:"id"`
			TotalRefundedSet MoneyBag `json:"totalRefundedSet"`
		} `json:"refund"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"refundCreate"`
}

type OrderCancelData struct {
	OrderCancel struct {
		Job *struct {
			ID   string `json:"id"`
			Done bool   `json:"done"`
		} `json:"job"`
		OrderCancelUserErrors []UserError `json:"orderCancelUserErrors"`
	} `json:"orderCancel"`
}

type FulfillmentCreateData struct {
	FulfillmentCreateV2 struct {
		Fulfillment *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"fulfillment"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"fulfillmentCreateV2"`
}

type FulfillmentTrackingUpdateData struct {
	FulfillmentTrackingInfoUpdateV2 struct {
		Fulfillment *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"fulfillment"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"fulfillmentTrackingInfoUpdateV2"`
}

type OrderInvoiceSendData struct {
	OrderInvoiceSend struct {
		Order *struct {
			ID string `json:"id"`
		} `json:"order"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"orderInvoiceSend"`
}
