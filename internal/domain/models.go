// Package domain defines the persistence models for the studio back office:
// users, clients, employees, services and their documents. These types are
// mapped with GORM and shared by the repository and service layers.
package domain

import (
	"errors"
	"time"
)

// User is an account that can sign in. Clients and employees each reference
// exactly one user.
//
// Fields:
//   - Email: login identifier, unique.
//   - GivenName / FamilyName: copied onto services at creation time.
//   - PasswordHash: bcrypt hash, never serialized.
//   - Role: coarse account kind (client, notary, employee).
type User struct {
	ID           uint      `json:"id"          gorm:"primaryKey"`
	Email        string    `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex"`
	GivenName    string    `json:"given_name"  gorm:"type:varchar(100);not null;index"`
	FamilyName   string    `json:"family_name" gorm:"type:varchar(100);not null;index"`
	Phone        string    `json:"phone,omitempty" gorm:"type:varchar(32)"`
	PasswordHash string    `json:"-"           gorm:"type:varchar(255);not null"`
	Role         UserRole  `json:"role"        gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Client is a customer of the studio.
type Client struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    uint      `json:"user_id"    gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"user" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// Employee is a member of staff. Role selects the variant; NotaryCode is the
// professional registration number and is only present for notaries.
type Employee struct {
	ID         uint         `json:"id"          gorm:"primaryKey"`
	UserID     uint         `json:"user_id"     gorm:"not null;uniqueIndex"`
	Role       EmployeeRole `json:"role"        gorm:"type:varchar(16);not null;index"`
	NotaryCode *int         `json:"notary_code,omitempty" gorm:"uniqueIndex"`
	CreatedAt  time.Time    `json:"created_at"`

	User User `json:"user" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Employee.
func (Employee) TableName() string { return "employees" }

var (
	// ErrNotaryCodeRequired is returned when a notary has no registration code.
	ErrNotaryCodeRequired = errors.New("notary code is required for notaries")
	// ErrNotaryCodeNotAllowed is returned when a non-notary carries a code.
	ErrNotaryCodeNotAllowed = errors.New("notary code is only allowed for notaries")
)

// IsNotary reports whether the employee is a notary.
func (e Employee) IsNotary() bool { return e.Role == RoleNotary }

// Validate checks the variant invariants.
func (e Employee) Validate() error {
	switch {
	case e.IsNotary() && (e.NotaryCode == nil || *e.NotaryCode <= 0):
		return ErrNotaryCodeRequired
	case !e.IsNotary() && e.NotaryCode != nil:
		return ErrNotaryCodeNotAllowed
	}
	return nil
}

// Service is a unit of legal work requested by a client.
//
// Fields:
//   - SequenceCode: per-client counter value, unique with ClientID, immutable.
//   - ServiceCode: global human-readable identifier ("SERV-000042"), immutable.
//   - ClientGivenName / ClientFamilyName: snapshot taken at creation, never refreshed.
//   - DeliveryDueAt: nil only for imported rows; the expiration sweep skips those.
//   - Archived / SoftDeleted: independent flags, neither coupled to Status.
//   - CreatedByID: employee who opened the service, if any.
type Service struct {
	ID               uint          `json:"id"                 gorm:"primaryKey"`
	ClientID         uint          `json:"client_id"          gorm:"not null;uniqueIndex:ux_services_client_seq,priority:1"`
	SequenceCode     int64         `json:"sequence_code"      gorm:"not null;uniqueIndex:ux_services_client_seq,priority:2"`
	ServiceCode      string        `json:"service_code"       gorm:"type:varchar(32);not null;uniqueIndex:ux_services_code"`
	ClientGivenName  string        `json:"client_given_name"  gorm:"type:varchar(100)"`
	ClientFamilyName string        `json:"client_family_name" gorm:"type:varchar(100)"`
	RequestedAt      time.Time     `json:"requested_at"       gorm:"not null"`
	DeliveryDueAt    *time.Time    `json:"delivery_due_at,omitempty"`
	Status           ServiceStatus `json:"status"             gorm:"type:varchar(32);not null;index"`
	Type             ServiceType   `json:"type"               gorm:"type:varchar(32);not null"`
	Archived         bool          `json:"archived"           gorm:"not null;index"`
	SoftDeleted      bool          `json:"soft_deleted"       gorm:"not null;index"`
	CreatedByID      *uint         `json:"created_by,omitempty" gorm:"index"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	Client    *Client    `json:"-" gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedBy *Employee  `json:"-" gorm:"foreignKey:CreatedByID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Employees []Employee `json:"employees,omitempty" gorm:"many2many:employee_services;constraint:OnDelete:CASCADE"`
	Documents []Document `json:"documents,omitempty" gorm:"many2many:service_documents;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Document is a file uploaded for a client, optionally linked to services.
// The bytes live in blob storage under StorageKey.
type Document struct {
	ID          uint         `json:"id"           gorm:"primaryKey"`
	ClientID    uint         `json:"client_id"    gorm:"not null;index"`
	Filename    string       `json:"filename"     gorm:"type:varchar(255);not null"`
	Type        DocumentType `json:"type"         gorm:"type:varchar(32);not null"`
	StorageKey  string       `json:"-"            gorm:"type:varchar(512);not null;uniqueIndex"`
	ContentType string       `json:"content_type" gorm:"type:varchar(128)"`
	Size        int64        `json:"size"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Client *Client `json:"-" gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// ClientCounter holds the next per-client sequence value. Rows are created
// lazily on the first service of a client.
type ClientCounter struct {
	ClientID  uint  `gorm:"primaryKey;autoIncrement:false"`
	NextValue int64 `gorm:"not null"`
}

// TableName returns the database table name for ClientCounter.
func (ClientCounter) TableName() string { return "client_counters" }

// ServiceCodeSequence is a side table whose auto-increment id backs service
// codes on databases without native sequences.
type ServiceCodeSequence struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for ServiceCodeSequence.
func (ServiceCodeSequence) TableName() string { return "service_code_sequences" }
