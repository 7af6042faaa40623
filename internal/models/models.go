package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Case represents one fraud report and its investigation record
type Case struct {
	ID                  uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	CaseCode            string              `json:"case_code" gorm:"column:case_code;uniqueIndex"`
	ReporterID          string              `json:"reporter_id" gorm:"column:reporter_id;index"`
	ReporterName        string              `json:"reporter_name" gorm:"column:reporter_name"`
	CaseType            string              `json:"case_type" gorm:"column:case_type"`
	Description         string              `json:"description" gorm:"column:description"`
	Amount              float64             `json:"amount" gorm:"column:amount"`
	IncidentDate        time.Time           `json:"incident_date" gorm:"column:incident_date"`
	Location            string              `json:"location" gorm:"column:location"`
	Contact             ContactInfo         `json:"contact_info" gorm:"column:contact_info;serializer:json"`
	Form                IntakeForm          `json:"intake_form" gorm:"column:intake_form;serializer:json"`
	Evidence            []EvidenceItem      `json:"evidence" gorm:"column:evidence;serializer:json"`
	ScammerID           *uuid.UUID          `json:"scammer_id,omitempty" gorm:"column:scammer_id;type:uuid;index"`
	DocumentID          *uuid.UUID          `json:"document_id,omitempty" gorm:"column:document_id;type:uuid"`
	Notifications       NotificationResults `json:"notification_results,omitempty" gorm:"column:notification_results;serializer:json"`
	Status              Stage               `json:"status" gorm:"column:status;index"`
	Round               int                 `json:"round" gorm:"column:round"`
	Priority            Priority            `json:"priority" gorm:"column:priority"`
	AssignedOfficerID   *string             `json:"assigned_officer_id,omitempty" gorm:"column:assigned_officer_id;index"`
	AssignedOfficerName *string             `json:"assigned_officer_name,omitempty" gorm:"column:assigned_officer_name"`
	CreatedAt           time.Time           `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time           `json:"updated_at" gorm:"column:updated_at"`
}

func (Case) TableName() string { return "cases" }

// TimelineEntry is one append-only fact about a case
type TimelineEntry struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	CaseID      uuid.UUID   `json:"case_id" gorm:"column:case_id;type:uuid;index"`
	Round       int         `json:"round" gorm:"column:round"`
	Stage       Stage       `json:"stage" gorm:"column:stage"`
	Label       string      `json:"label" gorm:"column:label"`
	Status      EntryStatus `json:"status" gorm:"column:status"`
	Description string      `json:"description" gorm:"column:description"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" gorm:"column:completed_at"`
	Actor       Actor       `json:"actor" gorm:"embedded;embeddedPrefix:actor_"`
	Metadata    JSONB       `json:"metadata,omitempty" gorm:"column:metadata;type:jsonb"`
	Synthesized bool        `json:"synthesized,omitempty" gorm:"-"`
	Seq         int64       `json:"-" gorm:"column:seq;->"`
	CreatedAt   time.Time   `json:"created_at" gorm:"column:created_at"`
}

func (TimelineEntry) TableName() string { return "timeline_entries" }

// Actor identifies who performed a stage transition
type Actor struct {
	ID   string `json:"id" gorm:"column:id"`
	Role Role   `json:"role" gorm:"column:role"`
	Name string `json:"name" gorm:"column:name"`
}

// ScammerProfile is a deduplicated record of a reported bad actor
type ScammerProfile struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string        `json:"name" gorm:"column:name"`
	Phone         string        `json:"phone,omitempty" gorm:"column:phone;index"`
	Email         string        `json:"email,omitempty" gorm:"column:email;index"`
	PaymentHandle string        `json:"payment_handle,omitempty" gorm:"column:payment_handle;index"`
	BankAccount   string        `json:"bank_account,omitempty" gorm:"column:bank_account;index"`
	RoutingCode   string        `json:"routing_code,omitempty" gorm:"column:routing_code;index"`
	Address       string        `json:"address,omitempty" gorm:"column:address"`
	CaseIDs       []uuid.UUID   `json:"case_ids" gorm:"column:case_ids;serializer:json"`
	CaseCount     int           `json:"case_count" gorm:"column:case_count"`
	FirstSeen     time.Time     `json:"first_seen" gorm:"column:first_seen"`
	LastSeen      time.Time     `json:"last_seen" gorm:"column:last_seen"`
	Status        ScammerStatus `json:"status" gorm:"column:status"`
	CreatedAt     time.Time     `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"column:updated_at"`
}

func (ScammerProfile) TableName() string { return "scammer_profiles" }

// HasCase reports whether the profile already links the case
func (p *ScammerProfile) HasCase(caseID uuid.UUID) bool {
	for _, id := range p.CaseIDs {
		if id == caseID {
			return true
		}
	}
	return false
}

// ScammerIdentifiers is a partial record of identifying details for a suspect
type ScammerIdentifiers struct {
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	PaymentHandle string `json:"payment_handle,omitempty"`
	BankAccount   string `json:"bank_account,omitempty"`
	RoutingCode   string `json:"routing_code,omitempty"`
	Address       string `json:"address,omitempty"`
}

// HasIdentifiers reports whether at least one matchable identifier is present
func (s ScammerIdentifiers) HasIdentifiers() bool {
	return s.Phone != "" || s.Email != "" || s.PaymentHandle != "" ||
		s.BankAccount != "" || s.RoutingCode != ""
}

// NotificationAttempt records a single send to one authority category
type NotificationAttempt struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CaseID      uuid.UUID `json:"case_id" gorm:"column:case_id;type:uuid;index"`
	Category    Category  `json:"category" gorm:"column:category"`
	Recipient   string    `json:"recipient" gorm:"column:recipient"`
	Subject     string    `json:"subject" gorm:"column:subject"`
	Body        string    `json:"body" gorm:"column:body"`
	Success     bool      `json:"success" gorm:"column:success"`
	Error       string    `json:"error,omitempty" gorm:"column:error"`
	MessageID   string    `json:"message_id,omitempty" gorm:"column:message_id"`
	AttemptedAt time.Time `json:"attempted_at" gorm:"column:attempted_at"`
}

func (NotificationAttempt) TableName() string { return "notification_attempts" }

// NotificationResult is the outcome of one category within a dispatch
type NotificationResult struct {
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// NotificationResults maps each authority category to its outcome
type NotificationResults map[Category]NotificationResult

// Failed returns the categories whose last outcome was a failure
func (r NotificationResults) Failed() []Category {
	var failed []Category
	for _, category := range AllCategories {
		if result, ok := r[category]; ok && !result.Success {
			failed = append(failed, category)
		}
	}
	return failed
}

// Document is a rendered legal notice
type Document struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CaseID      uuid.UUID `json:"case_id" gorm:"column:case_id;type:uuid;index"`
	Kind        string    `json:"kind" gorm:"column:kind"`
	ContentType string    `json:"content_type" gorm:"column:content_type"`
	Content     []byte    `json:"-" gorm:"column:content"`
	Size        int       `json:"size" gorm:"column:size"`
	Digest      string    `json:"digest" gorm:"column:digest"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Document) TableName() string { return "documents" }

// Principal is the authenticated caller supplied by the auth layer
type Principal struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// Actor converts the principal into a timeline actor
func (p Principal) Actor() Actor {
	return Actor{ID: p.ID, Role: p.Role, Name: p.DisplayName}
}

// SystemPrincipal performs the automatic post-submission cascade
var SystemPrincipal = Principal{ID: "system", Role: RoleSystem, DisplayName: "System"}

// ContactInfo holds the reporter's contact details
type ContactInfo struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// EvidenceItem references a piece of evidence supplied with the report
type EvidenceItem struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Assignee identifies the police officer a case is assigned to
type Assignee struct {
	OfficerID   string `json:"officer_id" validate:"required"`
	OfficerName string `json:"officer_name" validate:"required"`
}

// Request DTOs

// SubmitCaseRequest is the intake payload for a new case
type SubmitCaseRequest struct {
	CaseType     string              `json:"case_type" validate:"required"`
	Description  string              `json:"description" validate:"required"`
	Amount       *float64            `json:"amount" validate:"required,gte=0"`
	IncidentDate *time.Time          `json:"incident_date" validate:"required"`
	Location     string              `json:"location" validate:"required"`
	Priority     Priority            `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Contact      ContactInfo         `json:"contact_info"`
	Evidence     []EvidenceItem      `json:"evidence,omitempty"`
	Scammer      *ScammerIdentifiers `json:"scammer,omitempty"`
	Form         IntakeForm          `json:"intake_form"`
}

// SuspectIdentifiers returns the scammer details from the request or its form
func (r *SubmitCaseRequest) SuspectIdentifiers() (ScammerIdentifiers, bool) {
	if r.Scammer != nil && r.Scammer.HasIdentifiers() {
		return *r.Scammer, true
	}
	if r.Form.ScammerInfo != nil && r.Form.ScammerInfo.HasIdentifiers() {
		return *r.Form.ScammerInfo, true
	}
	return ScammerIdentifiers{}, false
}

// AdvanceStageRequest asks the orchestrator to move a case to a new stage
type AdvanceStageRequest struct {
	Stage    Stage               `json:"stage" binding:"required"`
	Comment  string              `json:"comment,omitempty"`
	Assignee *Assignee           `json:"assignee,omitempty"`
	Scammer  *ScammerIdentifiers `json:"scammer,omitempty"`
}

// UpdateScammerStatusRequest changes a scammer profile status
type UpdateScammerStatusRequest struct {
	Status ScammerStatus `json:"status" binding:"required"`
}

// StageResult describes the outcome of a stage advance
type StageResult struct {
	CaseID           uuid.UUID           `json:"case_id"`
	PreviousStatus   Stage               `json:"previous_status"`
	Status           Stage               `json:"status"`
	AlreadyCompleted bool                `json:"already_completed"`
	Entry            *TimelineEntry      `json:"entry,omitempty"`
	DocumentID       *uuid.UUID          `json:"document_id,omitempty"`
	Notifications    NotificationResults `json:"notifications,omitempty"`
}

// Filter types

// CaseFilter narrows listCases results
type CaseFilter struct {
	Status            *Stage     `json:"status,omitempty" form:"status"`
	CaseType          *string    `json:"case_type,omitempty" form:"case_type"`
	Priority          *Priority  `json:"priority,omitempty" form:"priority"`
	ReporterID        *string    `json:"reporter_id,omitempty" form:"reporter_id"`
	AssignedOfficerID *string    `json:"assigned_officer_id,omitempty" form:"assigned_officer_id"`
	ScammerID         *uuid.UUID `json:"scammer_id,omitempty" form:"scammer_id"`
}

// Enums

type Stage string

const (
	StageReportSubmitted     Stage = "report_submitted"
	StageInformationVerified Stage = "information_verified"
	StageCRPCGenerated       Stage = "crpc_generated"
	StageEmailsSent          Stage = "emails_sent"
	StageAuthorized          Stage = "authorized"
	StageAssignedToPolice    Stage = "assigned_to_police"
	StageUnderInvestigation  Stage = "under_investigation"
	StageEvidenceCollected   Stage = "evidence_collected"
	StageResolved            Stage = "resolved"
	StageClosed              Stage = "closed"
	StageRejected            Stage = "rejected"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RolePolice Role = "police"
	RoleSystem Role = "system"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

type ScammerStatus string

const (
	ScammerActive             ScammerStatus = "active"
	ScammerUnderInvestigation ScammerStatus = "under_investigation"
	ScammerBlocked            ScammerStatus = "blocked"
)

// Valid reports whether s is a known scammer status
func (s ScammerStatus) Valid() bool {
	switch s {
	case ScammerActive, ScammerUnderInvestigation, ScammerBlocked:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityForAmount derives a priority from the claimed amount
func PriorityForAmount(amount float64) Priority {
	switch {
	case amount >= 100000:
		return PriorityHigh
	case amount >= 10000:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Category is an authority recipient category
type Category string

const (
	CategoryTelecom Category = "telecom"
	CategoryBanking Category = "banking"
	CategoryNodal   Category = "nodal"
)

// AllCategories lists every authority category in dispatch order
var AllCategories = []Category{CategoryTelecom, CategoryBanking, CategoryNodal}

// Custom types for database

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
