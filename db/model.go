package db

import "time"

// ===========================
// TENANCY & IDENTITY
// ===========================

// Organization is a hotel (tenant). Its id is the identity provider's org id.
type Organization struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Division struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is staff or a guest. Guests are found by MobilePhone (local 0... form).
type User struct {
	ID           string    `json:"id"`
	OrgID        *string   `json:"org_id,omitempty"`
	DivisionID   *string   `json:"division_id,omitempty"`
	RoleID       *string   `json:"role_id,omitempty"`
	Name         string    `json:"name"`
	Email        *string   `json:"email,omitempty"`
	MobilePhone  *string   `json:"mobile_phone,omitempty"`
	IDCardNumber *string   `json:"id_card_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Populated via JOINs
	RoleName string `json:"role_name,omitempty"`
	RoleCode string `json:"role_code,omitempty"`
}

// ===========================
// ROOMS & STAYS
// ===========================

type Room struct {
	ID         string    `json:"id"`
	OrgID      *string   `json:"org_id,omitempty"`
	Label      string    `json:"label"`
	RoomNumber string    `json:"room_number"`
	Type       string    `json:"type"`
	IsBooked   bool      `json:"is_booked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	CheckinStatusActive    = "active"
	CheckinStatusCompleted = "completed"
	CheckinStatusCancelled = "cancelled"
)

// CheckinRoom is one guest stay. A stay may span several rooms.
type CheckinRoom struct {
	ID           string     `json:"id"`
	OrgID        *string    `json:"org_id,omitempty"`
	GuestID      string     `json:"guest_id"`
	RoomIDs      []string   `json:"room_id"`
	CheckinDate  time.Time  `json:"checkin_date"`
	CheckinTime  string     `json:"checkin_time"`
	CheckoutDate *time.Time `json:"checkout_date,omitempty"`
	CheckoutTime *string    `json:"checkout_time,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Rooms []Room `json:"rooms,omitempty"`
}

// ===========================
// CONVERSATIONS
// ===========================

const (
	SessionStatusOpen       = "open"
	SessionStatusTerminated = "terminated"

	SessionModeAgent  = "agent"
	SessionModeManual = "manual"
)

// Session is one WhatsApp conversation window with a guest.
type Session struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	Start         time.Time  `json:"start"`
	End           *time.Time `json:"end,omitempty"`
	Duration      *int64     `json:"duration,omitempty"` // seconds
	GuestID       string     `json:"guest_id"`
	CheckinRoomID *string    `json:"checkin_room_id,omitempty"`
	AgentCreated  bool       `json:"agent_created"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s Session) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.UpdatedAt) > timeout
}

const (
	MessageRoleUser   = "User"
	MessageRoleSystem = "System"
)

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ===========================
// ORDERS
// ===========================

const (
	OrderStatusPending    = "pending"
	OrderStatusAssigned   = "assigned"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusRejected   = "rejected"
	OrderStatusBlock      = "block"
	OrderStatusSuspended  = "suspended"
)

// OrderCategories are the service lines an agent can raise orders for.
var OrderCategories = []string{"housekeeping", "room_service", "maintenance", "concierge", "restaurant"}

type Order struct {
	ID              string    `json:"id"`
	OrderNumber     string    `json:"order_number"`
	CheckinRoomID   *string   `json:"checkin_room_id,omitempty"`
	SessionID       *string   `json:"session_id,omitempty"`
	OrgID           *string   `json:"org_id,omitempty"`
	Category        string    `json:"category"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	AdditionalNotes string    `json:"additional_notes,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`

	// Populated via JOINs for list responses
	GuestName   string       `json:"guest_name,omitempty"`
	GuestPhone  string       `json:"guest_phone,omitempty"`
	Checkin     *CheckinRoom `json:"checkin,omitempty"`
	SessionMode string       `json:"session_mode,omitempty"`
}

type OrderItem struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Qty         int       `json:"qty"`
	Price       float64   `json:"price"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	AssignmentStatusAssigned   = "assigned"
	AssignmentStatusPickUp     = "pick_up"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusCancel     = "cancel"
	AssignmentStatusCompleted  = "completed"
)

// ActiveAssignmentStatuses count towards a worker's concurrent order limit.
var ActiveAssignmentStatuses = []string{AssignmentStatusAssigned, AssignmentStatusPickUp, AssignmentStatusInProgress}

type OrderAssigner struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	WorkerID   string    `json:"worker_id"`
	AssignedAt time.Time `json:"assigned_at"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
