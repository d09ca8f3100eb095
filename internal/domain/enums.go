package domain

import "strings"

// ServiceStatus is the workflow state of a Service.
type ServiceStatus string

const (
	StatusCreated         ServiceStatus = "CREATED"
	StatusInProgress      ServiceStatus = "IN_PROGRESS"
	StatusPendingApproval ServiceStatus = "PENDING_APPROVAL"
	StatusApproved        ServiceStatus = "APPROVED"
	StatusRejected        ServiceStatus = "REJECTED"
	// StatusDelivered is declared for completeness; no operation produces it.
	StatusDelivered ServiceStatus = "DELIVERED"
)

// Statuses lists every workflow state in lifecycle order.
var Statuses = []ServiceStatus{
	StatusCreated, StatusInProgress, StatusPendingApproval,
	StatusApproved, StatusRejected, StatusDelivered,
}

// Valid reports whether s is a known status.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusPendingApproval,
		StatusApproved, StatusRejected, StatusDelivered:
		return true
	}
	return false
}

// Completed reports whether s is a terminal outcome of the workflow.
func (s ServiceStatus) Completed() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusDelivered
}

// ServiceType classifies the legal work requested by a client.
type ServiceType string

const (
	TypeDeed                ServiceType = "deed"
	TypeCompromiseAgreement ServiceType = "compromise_agreement"
	TypeEstimate            ServiceType = "estimate"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case TypeDeed, TypeCompromiseAgreement, TypeEstimate:
		return true
	}
	return false
}

// ParseServiceType maps user input (case-insensitive, "-" or " " tolerated)
// to a ServiceType.
func ParseServiceType(s string) (ServiceType, bool) {
	t := ServiceType(normalizeEnum(s))
	return t, t.Valid()
}

// EmployeeRole discriminates the Employee variant.
type EmployeeRole string

const (
	RoleNotary     EmployeeRole = "notary"
	RoleAccountant EmployeeRole = "accountant"
	RoleAssistant  EmployeeRole = "assistant"
	RoleEmployee   EmployeeRole = "employee"
)

// Valid reports whether r is a known employee role.
func (r EmployeeRole) Valid() bool {
	switch r {
	case RoleNotary, RoleAccountant, RoleAssistant, RoleEmployee:
		return true
	}
	return false
}

// ParseEmployeeRole maps user input to an EmployeeRole.
func ParseEmployeeRole(s string) (EmployeeRole, bool) {
	r := EmployeeRole(normalizeEnum(s))
	return r, r.Valid()
}

// UserRole is the coarse account kind used by authentication.
type UserRole string

const (
	UserClient   UserRole = "client"
	UserNotary   UserRole = "notary"
	UserEmployee UserRole = "employee"
)

// DocumentType classifies an uploaded client document.
type DocumentType string

const (
	DocIdentityCard        DocumentType = "identity_card"
	DocPropertyDeed        DocumentType = "property_deed"
	DocPassport            DocumentType = "passport"
	DocHealthCard          DocumentType = "health_card"
	DocLandRegistry        DocumentType = "land_registry"
	DocFloorPlan           DocumentType = "floor_plan"
	DocDeed                DocumentType = "deed"
	DocCompromiseAgreement DocumentType = "compromise_agreement"
	DocEstimate            DocumentType = "estimate"
)

// Valid reports whether d is a known document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocIdentityCard, DocPropertyDeed, DocPassport, DocHealthCard,
		DocLandRegistry, DocFloorPlan, DocDeed, DocCompromiseAgreement, DocEstimate:
		return true
	}
	return false
}

// ParseDocumentType maps user input to a DocumentType.
func ParseDocumentType(s string) (DocumentType, bool) {
	d := DocumentType(normalizeEnum(s))
	return d, d.Valid()
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
