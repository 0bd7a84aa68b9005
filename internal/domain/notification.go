package domain

import "time"

// Category drives which out-of-band channels a notification is sent through.
type Category string

const (
	CategoryOrderUpdate   Category = "order_update"
	CategoryAccountUpdate Category = "account_update"
	CategoryPromotion     Category = "promotion"
	CategorySecurityAlert Category = "security_alert"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOrderUpdate, CategoryAccountUpdate, CategoryPromotion, CategorySecurityAlert:
		return true
	}
	return false
}

// NotificationEvent is immutable once handed to the dispatcher.
type NotificationEvent struct {
	ID          string    `json:"id" dynamodbav:"notification_id"`
	PrincipalID string    `json:"principal_id" dynamodbav:"user_id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Body        string    `json:"body" dynamodbav:"body"`
	Category    Category  `json:"category" dynamodbav:"category"`
	Read        bool      `json:"read" dynamodbav:"read"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}

type CreateNotificationRequest struct {
	PrincipalID string   `json:"principal_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200"`
	Body        string   `json:"body" validate:"max=4000"`
	Category    Category `json:"category" validate:"required,oneof=order_update account_update promotion security_alert"`
}
