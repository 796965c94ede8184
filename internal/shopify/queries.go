package shopify

import "strings"

const moneyFields = `shopMoney { amount currencyCode }`

// ShopInfoQuery returns the shop header shown on the POS tile.
const ShopInfoQuery = `
	query ShopInfo {
		shop {
			id
			name
			email
			myshopifyDomain
			primaryDomain { host url }
			currencyCode
			plan { displayName }
			timezoneAbbreviation
		}
	}`

const orderSummaryFields = `
	id
	name
	createdAt
	cancelledAt
	email
	displayFinancialStatus
	displayFulfillmentStatus
	currentSubtotalLineItemsQuantity
	customer { displayName }
	totalPriceSet { ` + moneyFields + ` }`

// OrderListQuery pages through orders, newest first unless reversed.
const OrderListQuery = `
	query OrderList($first: Int!, $after: String, $query: String, $reverse: Boolean) {
		orders(first: $first, after: $after, query: $query, reverse: $reverse, sortKey: CREATED_AT) {
			pageInfo { hasNextPage endCursor }
			nodes {` + orderSummaryFields + `
			}
		}
	}`

// OrderSearchQuery ranks orders matching a search filter.
const OrderSearchQuery = `
	query OrderSearch($first: Int!, $query: String!) {
		orders(first: $first, query: $query, sortKey: RELEVANCE) {
			nodes {` + orderSummaryFields + `
			}
		}
	}`

// OrderByIDQuery loads everything the detail view and the actions need.
const OrderByIDQuery = `
	query OrderByID($id: ID!) {
		order(id: $id) {
			id
			legacyResourceId
			name
			createdAt
			cancelledAt
			cancelReason
			displayFinancialStatus
			displayFulfillmentStatus
			email
			phone
			note
			tags
			statusPageUrl
			customer { id displayName email phone }
			shippingAddress { name address1 address2 city province zip country phone }
			subtotalPriceSet { ` + moneyFields + ` }
			totalShippingPriceSet { ` + moneyFields + ` }
			totalTaxSet { ` + moneyFields + ` }
			totalPriceSet { ` + moneyFields + ` }
			totalRefundedSet { ` + moneyFields + ` }
			totalOutstandingSet { ` + moneyFields + ` }
			lineItems(first: 50) {
				nodes {
					id
					title
					variantTitle
					sku
					quantity
					refundableQuantity
					unfulfilledQuantity
					originalUnitPriceSet { ` + moneyFields + ` }
					discountedTotalSet { ` + moneyFields + ` }
					image { url }
				}
			}
			fulfillments(first: 10) {
				id
				status
				createdAt
				trackingInfo(first: 1) { company number url }
			}
			fulfillmentOrders(first: 10) {
				nodes {
					id
					status
					requestStatus
					assignedLocation { name location { id } }
				}
			}
			transactions(first: 20) {
				id
				kind
				status
				gateway
				amountSet { ` + moneyFields + ` }
			}
		}
	}`

// RefundCreateMutation refunds line items and/or an amount.
const RefundCreateMutation = `
	mutation RefundCreate($input: RefundInput!) {
		refundCreate(input: $input) {
			refund {
				id
				totalRefundedSet { ` + moneyFields + ` }
			}
			userErrors { field message }
		}
	}`

// OrderCancelMutation starts an asynchronous cancel job.
const OrderCancelMutation = `
	mutation OrderCancel($orderId: ID!, $reason: OrderCancelReason!, $refund: Boolean!, $restock: Boolean!, $notifyCustomer: Boolean, $staffNote: String) {
		orderCancel(orderId: $orderId, reason: $reason, refund: $refund, restock: $restock, notifyCustomer: $notifyCustomer, staffNote: $staffNote) {
			job { id done }
			orderCancelUserErrors { field message code }
		}
	}`

// FulfillmentCreateMutation fulfills whole fulfillment orders.
const FulfillmentCreateMutation = `
	mutation FulfillmentCreate($fulfillment: FulfillmentV2Input!) {
		fulfillmentCreateV2(fulfillment: $fulfillment) {
			fulfillment { id status }
			userErrors { field message }
		}
	}`

// FulfillmentTrackingUpdateMutation replaces tracking on a fulfillment.
const FulfillmentTrackingUpdateMutation = `
	mutation FulfillmentTrackingUpdate($fulfillmentId: ID!, $trackingInfoInput: FulfillmentTrackingInput!, $notifyCustomer: Boolean) {
		fulfillmentTrackingInfoUpdateV2(fulfillmentId: $fulfillmentId, trackingInfoInput: $trackingInfoInput, notifyCustomer: $notifyCustomer) {
			fulfillment { id status }
			userErrors { field message }
		}
	}`

// OrderInvoiceSendMutation e-mails the order notification to the customer.
const OrderInvoiceSendMutation = `
	mutation OrderInvoiceSend($id: ID!, $email: EmailInput) {
		orderInvoiceSend(id: $id, email: $email) {
			order { id }
			userErrors { field message }
		}
	}`

// SearchTerm builds a "field:value" filter for the orders query argument,
// quoting values that contain spaces or quotes.
func SearchTerm(field, value string) string {
	if strings.ContainsAny(value, " \t\"'():") {
		value = `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	if field == "" {
		return value
	}
	return field + ":" + value
}
