package enums

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks whether money actually moved for an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid reports whether the payment status is a known value.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// NotificationType labels in-app notification rows.
type NotificationType string

const (
	NotificationTypeOrderConfirmed NotificationType = "order_confirmed"
	NotificationTypeOrderShipped   NotificationType = "order_shipped"
	NotificationTypeOrderRefunded  NotificationType = "order_refunded"
)

// UserRole distinguishes shoppers from back-office operators.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// IsValid reports whether the role is a known value.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleCustomer, UserRoleAdmin:
		return true
	default:
		return false
	}
}

// GatewayEventType tags entries in a payment's append-only gateway log.
type GatewayEventType string

const (
	GatewayEventIntentCreated  GatewayEventType = "intent.created"
	GatewayEventClientVerified GatewayEventType = "client.verified"
	GatewayEventWebhookCapture GatewayEventType = "webhook.captured"
	GatewayEventRefundIssued   GatewayEventType = "refund.issued"
)
