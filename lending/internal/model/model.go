package model

import (
	"strings"
	"time"

	"github.com/mkayfour/school-lending/pkg/auth"
)

type Equipment struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Category          string    `json:"category" db:"category"`
	Condition         string    `json:"condition" db:"condition"`
	TotalQuantity     int       `json:"quantity" db:"total_quantity"`
	AvailableQuantity int       `json:"availableQuantity" db:"available_quantity"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

type CreateEquipmentRequest struct {
	Name          string `json:"name" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Condition     string `json:"condition" validate:"required"`
	TotalQuantity int    `json:"quantity" validate:"required,min=1"`
}

// UpdateEquipmentRequest carries the fields to change; nil means unchanged.
type UpdateEquipmentRequest struct {
	Name          *string `json:"name,omitempty"`
	Category      *string `json:"category,omitempty"`
	Condition     *string `json:"condition,omitempty"`
	TotalQuantity *int    `json:"quantity,omitempty"`
}

type EquipmentQuery struct {
	Query         string
	Category      string
	OnlyAvailable bool
}

// Matches reports whether e satisfies q: case-insensitive partial name
// match, exact category, positive available quantity.
func (q EquipmentQuery) Matches(e Equipment) bool {
	if q.Query != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(q.Query)) {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.OnlyAvailable && e.AvailableQuantity <= 0 {
		return false
	}
	return true
}

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusReturned  Status = "RETURNED"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

// Active statuses still hold or may hold a unit of the item.
func (s Status) Active() bool {
	return s == StatusRequested || s == StatusApproved
}

type BorrowRequest struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	EquipmentID int64     `json:"equipmentId" db:"equipment_id"`
	Status      Status    `json:"status" db:"status"`
	BorrowDate  time.Time `json:"borrowDate" db:"borrow_date"`
	ReturnDate  time.Time `json:"returnDate" db:"return_date"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

func (r BorrowRequest) Period() Period {
	return Period{From: r.BorrowDate, To: r.ReturnDate}
}

type Requester struct {
	Name string    `json:"name"`
	Role auth.Role `json:"role"`
}

// BorrowRequestView is a request joined with its display data.
type BorrowRequestView struct {
	BorrowRequest `json:",inline"`
	Equipment     *Equipment `json:"equipment,omitempty"`
	User          *Requester `json:"user,omitempty"`
}

type CreateBorrowRequest struct {
	EquipmentID int64 `json:"equipmentId" validate:"required"`
	BorrowDate  Date  `json:"borrowDate"`
	ReturnDate  Date  `json:"returnDate"`
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         auth.Role `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type SignupRequest struct {
	Name     string    `json:"name" validate:"required"`
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=6"`
	Role     auth.Role `json:"role" validate:"omitempty,oneof=STUDENT STAFF ADMIN"`
}

type SignupResponse struct {
	ID int64 `json:"id"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}
