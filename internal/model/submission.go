package model

import "time"

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusCancelled = "cancelled"
)

// Appointment is a visit request submitted from the public site. Date is kept
// as the free-form string the visitor entered.
type Appointment struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Date      string    `json:"date" db:"date"`
	Message   string    `json:"message" db:"message"`
	Status    string    `json:"status" db:"status"`
	Reason    *string   `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Message is a contact form submission.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Subscriber is a newsletter sign-up. Email is unique.
type Subscriber struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	SubscribedOn time.Time `json:"subscribed_on" db:"subscribed_on"`
}
