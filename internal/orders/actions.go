package orders

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/shopify"
	"github.com/harrylevesque/orderscan/internal/utils"
)

const lineItemGIDPrefix = "gid://shopify/LineItem/"

// RefundLine selects a quantity of one line item.
type RefundLine struct {
	LineItemID string `json:"line_item_id"`
	Quantity   int    `json:"quantity"`
}

type RefundRequest struct {
	LineItems []RefundLine `json:"line_items"`
	// Amount is a decimal string in the shop currency.
	Amount  string `json:"amount"`
	Note    string `json:"note"`
	Notify  bool   `json:"notify"`
	Restock bool   `json:"restock"`
}

type CancelRequest struct {
	Reason         string `json:"reason"`
	Refund         bool   `json:"refund"`
	Restock        bool   `json:"restock"`
	NotifyCustomer bool   `json:"notify_customer"`
	StaffNote      string `json:"staff_note"`
}

type FulfillmentRequest struct {
	// FulfillmentID selects an existing fulfillment whose tracking is replaced.
	FulfillmentID       string   `json:"fulfillment_id"`
	FulfillmentOrderIDs []string `json:"fulfillment_order_ids"`
	TrackingNumber      string   `json:"tracking_number"`
	TrackingCompany     string   `json:"tracking_company"`
	TrackingURL         string   `json:"tracking_url"`
	NotifyCustomer      bool     `json:"notify_customer"`
}

type NotifyRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

var cancelReasons = map[string]bool{
	"CUSTOMER":  true,
	"DECLINED":  true,
	"FRAUD":     true,
	"INVENTORY": true,
	"STAFF":     true,
	"OTHER":     true,
}

func badRequest(msg string) error { return utils.New(http.StatusBadRequest, msg) }

func (s *Service) Refund(ctx context.Context, creds shopify.Credentials, id string, req RefundRequest) (*models.ActionResult, error) {
	if len(req.LineItems) == 0 && strings.TrimSpace(req.Amount) == "" {
		return nil, badRequest("refund needs line items or an amount")
	}
	o, err := s.fetch(ctx, creds, id)
	if err != nil {
		return nil, err
	}

	input := map[string]interface{}{
		"orderId": o.ID,
		"notify":  req.Notify,
	}
	if req.Note != "" {
		input["note"] = req.Note
	}

	if len(req.LineItems) > 0 {
		lines, err := refundLines(o, req.LineItems, req.Restock)
		if err != nil {
			return nil, err
		}
		input["refundLineItems"] = lines
	}

	var amount decimal.Decimal
	if raw := strings.TrimSpace(req.Amount); raw != "" {
		amount, err = decimal.NewFromString(raw)
		if err != nil || !amount.IsPositive() {
			return nil, badRequest("amount must be a positive decimal")
		}
		if amount.GreaterThan(refundableAmount(o)) {
			return nil, badRequest(fmt.Sprintf("amount exceeds refundable total %s", refundableAmount(o).StringFixed(2)))
		}
		parent := parentTransaction(o)
		if parent == nil {
			return nil, utils.Wrap(http.StatusConflict, "order has no captured payment to refund", ErrConflict)
		}
		input["transactions"] = []map[string]interface{}{{
			"orderId":  o.ID,
			"parentId": parent.ID,
			"gateway":  parent.Gateway,
			"kind":     "REFUND",
			"amount":   amount.StringFixed(2),
		}}
	}

	var data shopify.RefundCreateData
	if err := s.gql.Execute(ctx, creds, shopify.RefundCreateMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	if err := shopify.AsUserErrors(data.RefundCreate.UserErrors); err != nil {
		return nil, err
	}

	res := &models.ActionResult{OrderID: o.ID, Action: "refund", Status: "refunded"}
	if r := data.RefundCreate.Refund; r != nil {
		res.ResourceID = r.ID
		m := toMoney(r.TotalRefundedSet)
		res.Message = fmt.Sprintf("Refunded %s %s", m.Amount, m.CurrencyCode)
	}
	s.logger.FromContext(ctx).WithFields(logrus.Fields{"order": o.Name, "refund": res.ResourceID}).Info("Refund created")
	return res, nil
}

func refundLines(o *shopify.Order, lines []RefundLine, restock bool) ([]map[string]interface{}, error) {
	items := make(map[string]shopify.LineItem, len(o.LineItems.Nodes))
	for _, li := range o.LineItems.Nodes {
		items[li.ID] = li
	}
	location := firstLocation(o)

	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		lid := l.LineItemID
		if lid != "" && !strings.HasPrefix(lid, "gid://") {
			lid = lineItemGIDPrefix + lid
		}
		li, ok := items[lid]
		if !ok {
			return nil, badRequest(fmt.Sprintf("line item %q is not on this order", l.LineItemID))
		}
		if l.Quantity < 1 || l.Quantity > li.RefundableQuantity {
			return nil, badRequest(fmt.Sprintf("quantity for %q must be between 1 and %d", li.Title, li.RefundableQuantity))
		}

		line := map[string]interface{}{
			"lineItemId":  lid,
			"quantity":    l.Quantity,
			"restockType": "NO_RESTOCK",
		}
		switch {
		case !restock:
		case li.UnfulfilledQuantity >= l.Quantity:
			line["restockType"] = "CANCEL"
		case location != "":
			line["restockType"] = "RETURN"
			line["locationId"] = location
		}
		out = append(out, line)
	}
	return out, nil
}

func firstLocation(o *shopify.Order) string {
	for _, fo := range o.FulfillmentOrders.Nodes {
		if loc := fo.AssignedLocation.Location; loc != nil && loc.ID != "" {
			return loc.ID
		}
	}
	return ""
}

func (s *Service) Cancel(ctx context.Context, creds shopify.Credentials, id string, req CancelRequest) (*models.ActionResult, error) {
	reason := strings.ToUpper(strings.TrimSpace(req.Reason))
	if reason == "" {
		reason = "OTHER"
	}
	if !cancelReasons[reason] {
		return nil, badRequest(fmt.Sprintf("unknown cancel reason %q", req.Reason))
	}

	o, err := s.fetch(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if o.CancelledAt != nil {
		return nil, utils.Wrap(http.StatusConflict, "order is already cancelled", ErrConflict)
	}

	vars := map[string]interface{}{
		"orderId":        o.ID,
		"reason":         reason,
		"refund":         req.Refund,
		"restock":        req.Restock,
		"notifyCustomer": req.NotifyCustomer,
	}
	if req.StaffNote != "" {
		vars["staffNote"] = req.StaffNote
	}

	var data shopify.OrderCancelData
	if err := s.gql.Execute(ctx, creds, shopify.OrderCancelMutation, vars, &data); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	if err := shopify.AsUserErrors(data.OrderCancel.OrderCancelUserErrors); err != nil {
		return nil, err
	}

	res := &models.ActionResult{OrderID: o.ID, Action: "cancel", Status: "pending", Message: "Cancellation requested"}
	if job := data.OrderCancel.Job; job != nil {
		res.ResourceID = job.ID
		if job.Done {
			res.Status = "cancelled"
			res.Message = "Order cancelled"
		}
	}
	s.logger.FromContext(ctx).WithFields(logrus.Fields{"order": o.Name, "reason": reason}).Info("Order cancel requested")
	return res, nil
}

func (s *Service) UpdateFulfillment(ctx context.Context, creds shopify.Credentials, id string, req FulfillmentRequest) (*models.ActionResult, error) {
	o, err := s.fetch(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	tracking := trackingInput(req)

	if req.FulfillmentID != "" {
		return s.updateTracking(ctx, creds, o, req, tracking)
	}

	wanted := make(map[string]bool, len(req.FulfillmentOrderIDs))
	for _, foID := range req.FulfillmentOrderIDs {
		wanted[foID] = true
	}
	groups := make([]map[string]interface{}, 0)
	for _, fo := range o.FulfillmentOrders.Nodes {
		if fo.Status != "OPEN" && fo.Status != "IN_PROGRESS" {
			continue
		}
		if len(wanted) > 0 && !wanted[fo.ID] {
			continue
		}
		groups = append(groups, map[string]interface{}{"fulfillmentOrderId": fo.ID})
	}
	if len(groups) == 0 {
		return nil, utils.Wrap(http.StatusConflict, "order has no open fulfillment orders", ErrConflict)
	}

	input := map[string]interface{}{
		"notifyCustomer":              req.NotifyCustomer,
		"lineItemsByFulfillmentOrder": groups,
	}
	if tracking != nil {
		input["trackingInfo"] = tracking
	}

	var data shopify.FulfillmentCreateData
	if err := s.gql.Execute(ctx, creds, shopify.FulfillmentCreateMutation, map[string]interface{}{"fulfillment": input}, &data); err != nil {
		return nil, fmt.Errorf("fulfill: %w", err)
	}
	if err := shopify.AsUserErrors(data.FulfillmentCreateV2.UserErrors); err != nil {
		return nil, err
	}

	res := &models.ActionResult{OrderID: o.ID, Action: "fulfillment", Status: "fulfilled",
		Message: fmt.Sprintf("Fulfilled %d fulfillment order(s)", len(groups))}
	if f := data.FulfillmentCreateV2.Fulfillment; f != nil {
		res.ResourceID = f.ID
		res.Status = strings.ToLower(f.Status)
	}
	s.logger.FromContext(ctx).WithFields(logrus.Fields{"order": o.Name, "fulfillment": res.ResourceID}).Info("Fulfillment created")
	return res, nil
}

func (s *Service) updateTracking(ctx context.Context, creds shopify.Credentials, o *shopify.Order, req FulfillmentRequest, tracking map[string]interface{}) (*models.ActionResult, error) {
	if tracking == nil {
		return nil, badRequest("tracking number or url is required to update a fulfillment")
	}
	found := false
	for _, f := range o.Fulfillments {
		if f.ID == req.FulfillmentID {
			found = true
			break
		}
	}
	if !found {
		return nil, utils.Wrap(http.StatusNotFound, "fulfillment not found on this order", ErrNotFound)
	}

	vars := map[string]interface{}{
		"fulfillmentId":     req.FulfillmentID,
		"trackingInfoInput": tracking,
		"notifyCustomer":    req.NotifyCustomer,
	}
	var data shopify.FulfillmentTrackingUpdateData
	if err := s.gql.Execute(ctx, creds, shopify.FulfillmentTrackingUpdateMutation, vars, &data); err != nil {
		return nil, fmt.Errorf("update tracking: %w", err)
	}
	if err := shopify.AsUserErrors(data.FulfillmentTrackingInfoUpdateV2.UserErrors); err != nil {
		return nil, err
	}
	return &models.ActionResult{
		OrderID:    o.ID,
		Action:     "fulfillment",
		Status:     "tracking_updated",
		ResourceID: req.FulfillmentID,
		Message:    "Tracking updated",
	}, nil
}

func trackingInput(req FulfillmentRequest) map[string]interface{} {
	if req.TrackingNumber == "" && req.TrackingURL == "" {
		return nil
	}
	t := map[string]interface{}{}
	if req.TrackingNumber != "" {
		t["number"] = req.TrackingNumber
	}
	if req.TrackingCompany != "" {
		t["company"] = req.TrackingCompany
	}
	if req.TrackingURL != "" {
		t["url"] = req.TrackingURL
	}
	return t
}

func (s *Service) Notify(ctx context.Context, creds shopify.Credentials, id string, req NotifyRequest) (*models.ActionResult, error) {
	o, err := s.fetch(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = o.Email
	}
	if to == "" {
		return nil, badRequest("order has no e-mail address; pass one in \"to\"")
	}

	email := map[string]interface{}{"to": to}
	if req.From != "" {
		email["from"] = req.From
	}
	if req.Subject != "" {
		email["subject"] = req.Subject
	}
	if req.Message != "" {
		email["customMessage"] = req.Message
	}

	var data shopify.OrderInvoiceSendData
	if err := s.gql.Execute(ctx, creds, shopify.OrderInvoiceSendMutation, map[string]interface{}{"id": o.ID, "email": email}, &data); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	if err := shopify.AsUserErrors(data.OrderInvoiceSend.UserErrors); err != nil {
		return nil, err
	}
	s.logger.FromContext(ctx).WithFields(logrus.Fields{"order": o.Name, "to": to}).Info("Order notification sent")
	return &models.ActionResult{OrderID: o.ID, Action: "notify", Status: "sent", Message: "Notification sent to " + to}, nil
}
