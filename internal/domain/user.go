package domain

import "time"

// User is the subset of the identity provider's user record this service reads and flags.
type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Email          string    `json:"email" dynamodbav:"email"`
	Phone          *string   `json:"phone" dynamodbav:"phone"`
	PasswordHash   string    `json:"-" dynamodbav:"password_hash"`
	Role           string    `json:"role" dynamodbav:"role"`
	EmailConfirmed bool      `json:"email_confirmed" dynamodbav:"email_confirmed"`
	PhoneConfirmed bool      `json:"phone_confirmed" dynamodbav:"phone_confirmed"`
	Enable         int       `json:"enable" dynamodbav:"enable"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Contact holds the out-of-band addresses of a principal. Either may be nil.
type Contact struct {
	Email *string
	Phone *string
}

// ContactOf derives the deliverable contact details of u.
func ContactOf(u *User) *Contact {
	c := &Contact{Phone: u.Phone}
	if u.Email != "" {
		email := u.Email
		c.Email = &email
	}
	return c
}
