package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusClosed    UserStatus = "closed"
)

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

type KYCStatus string

const (
	KYCStatusApproved     KYCStatus = "approved"
	KYCStatusPending      KYCStatus = "pending"
	KYCStatusRejected     KYCStatus = "rejected"
	KYCStatusNotSubmitted KYCStatus = "not_submitted"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	KYCStatus    KYCStatus
	Status       UserStatus
	CreatedAt    time.Time
}
