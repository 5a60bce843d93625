package model

import (
	"github.com/google/uuid"
)

// Client is a person booking reservations
type Client struct {
	Base
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
	Active    bool   `json:"active" db:"active"`
}

// Therapist is a bookable staff member
type Therapist struct {
	Base
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
	Active    bool   `json:"active" db:"active"`
}

// Room is a bookable physical resource
type Room struct {
	Base
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
	Active   bool   `json:"active" db:"active"`
}

// Service is a bookable treatment
type Service struct {
	Base
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	Active      bool   `json:"active" db:"active"`
}

// ServiceVariant is a priced, timed configuration of a service
type ServiceVariant struct {
	Base
	ServiceID       uuid.UUID `json:"service_id" db:"service_id"`
	Name            string    `json:"name" db:"name"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	Price           float64   `json:"price" db:"price"`
	Active          bool      `json:"active" db:"active"`
}

// AddOn is a priced extra attachable to a reservation
type AddOn struct {
	Base
	Name   string  `json:"name" db:"name"`
	Price  float64 `json:"price" db:"price"`
	Active bool    `json:"active" db:"active"`
}

type CreateTherapistRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
}

type CreateRoomRequest struct {
	Name     string `json:"name" binding:"required"`
	Position int    `json:"position"`
}
