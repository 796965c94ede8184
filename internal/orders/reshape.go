package orders

import (
	"github.com/shopspring/decimal"

	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/shopify"
)

func toMoney(bag shopify.MoneyBag) models.Money {
	return models.Money{
		Amount:       amountOf(bag).StringFixed(2),
		CurrencyCode: bag.ShopMoney.CurrencyCode,
	}
}

// amountOf parses a money bag; an empty or malformed amount counts as zero.
func amountOf(bag shopify.MoneyBag) decimal.Decimal {
	d, err := decimal.NewFromString(bag.ShopMoney.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toShop(s shopify.Shop) *models.Shop {
	return &models.Shop{
		ID:              s.ID,
		Name:            s.Name,
		Email:           s.Email,
		MyshopifyDomain: s.MyshopifyDomain,
		PrimaryDomain:   s.PrimaryDomain.Host,
		CurrencyCode:    s.CurrencyCode,
		PlanName:        s.Plan.DisplayName,
		TimezoneAbbr:    s.TimezoneAbbreviation,
	}
}

func toSummaries(nodes []shopify.OrderNode) []models.OrderSummary {
	out := make([]models.OrderSummary, 0, len(nodes))
	for _, n := range nodes {
		sum := models.OrderSummary{
			ID:                n.ID,
			Name:              n.Name,
			CreatedAt:         n.CreatedAt,
			Email:             n.Email,
			FinancialStatus:   n.DisplayFinancialStatus,
			FulfillmentStatus: n.DisplayFulfillmentStatus,
			Total:             toMoney(n.TotalPriceSet),
			ItemCount:         n.CurrentSubtotalLineItemsQuantity,
			Cancelled:         n.CancelledAt != nil,
		}
		if n.Customer != nil {
			sum.CustomerName = n.Customer.DisplayName
		}
		out = append(out, sum)
	}
	return out
}

func toOrder(o *shopify.Order) *models.Order {
	out := &models.Order{
		ID:                o.ID,
		LegacyID:          o.LegacyResourceID,
		Name:              o.Name,
		CreatedAt:         o.CreatedAt,
		CancelledAt:       o.CancelledAt,
		CancelReason:      o.CancelReason,
		FinancialStatus:   o.DisplayFinancialStatus,
		FulfillmentStatus: o.DisplayFulfillmentStatus,
		Email:             o.Email,
		Phone:             o.Phone,
		Note:              o.Note,
		Tags:              o.Tags,
		StatusPageURL:     o.StatusPageURL,
		Subtotal:          toMoney(o.SubtotalPriceSet),
		Shipping:          toMoney(o.TotalShippingPriceSet),
		Tax:               toMoney(o.TotalTaxSet),
		Total:             toMoney(o.TotalPriceSet),
		Refunded:          toMoney(o.TotalRefundedSet),
		Outstanding:       toMoney(o.TotalOutstandingSet),
		LineItems:         make([]models.LineItem, 0, len(o.LineItems.Nodes)),
		Fulfillments:      make([]models.Fulfillment, 0, len(o.Fulfillments)),
		FulfillmentOrders: make([]models.FulfillmentOrder, 0, len(o.FulfillmentOrders.Nodes)),
		Transactions:      make([]models.Transaction, 0, len(o.Transactions)),
		Cancellable:       o.CancelledAt == nil,
		Refundable:        parentTransaction(o) != nil && refundableAmount(o).IsPositive(),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if c := o.Customer; c != nil {
		out.Customer = &models.Customer{ID: c.ID, Name: c.DisplayName, Email: c.Email, Phone: c.Phone}
	}
	if a := o.ShippingAddress; a != nil {
		out.ShippingAddress = &models.Address{
			Name: a.Name, Address1: a.Address1, Address2: a.Address2, City: a.City,
			Province: a.Province, Zip: a.Zip, Country: a.Country, Phone: a.Phone,
		}
	}
	for _, li := range o.LineItems.Nodes {
		item := models.LineItem{
			ID:                  li.ID,
			Title:               li.Title,
			VariantTitle:        li.VariantTitle,
			SKU:                 li.SKU,
			Quantity:            li.Quantity,
			RefundableQuantity:  li.RefundableQuantity,
			UnfulfilledQuantity: li.UnfulfilledQuantity,
			UnitPrice:           toMoney(li.OriginalUnitPriceSet),
			Total:               toMoney(li.DiscountedTotalSet),
		}
		if li.Image != nil {
			item.ImageURL = li.Image.URL
		}
		out.LineItems = append(out.LineItems, item)
	}
	for _, f := range o.Fulfillments {
		ful := models.Fulfillment{ID: f.ID, Status: f.Status, CreatedAt: f.CreatedAt}
		if len(f.TrackingInfo) > 0 {
			ful.TrackingCompany = f.TrackingInfo[0].Company
			ful.TrackingNumber = f.TrackingInfo[0].Number
			ful.TrackingURL = f.TrackingInfo[0].URL
		}
		out.Fulfillments = append(out.Fulfillments, ful)
	}
	for _, fo := range o.FulfillmentOrders.Nodes {
		out.FulfillmentOrders = append(out.FulfillmentOrders, models.FulfillmentOrder{
			ID:            fo.ID,
			Status:        fo.Status,
			RequestStatus: fo.RequestStatus,
			LocationName:  fo.AssignedLocation.Name,
		})
	}
	for _, t := range o.Transactions {
		out.Transactions = append(out.Transactions, models.Transaction{
			ID: t.ID, Kind: t.Kind, Status: t.Status, Gateway: t.Gateway, Amount: toMoney(t.AmountSet),
		})
	}
	return out
}

// refundableAmount is what has been charged and not yet refunded.
func refundableAmount(o *shopify.Order) decimal.Decimal {
	left := amountOf(o.TotalPriceSet).Sub(amountOf(o.TotalRefundedSet))
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// parentTransaction is the first successful sale or capture, which refund
// transactions must reference.
func parentTransaction(o *shopify.Order) *shopify.Transaction {
	for i := range o.Transactions {
		t := &o.Transactions[i]
		if (t.Kind == "SALE" || t.Kind == "CAPTURE") && t.Status == "SUCCESS" {
			return t
		}
	}
	return nil
}
