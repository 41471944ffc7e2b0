package models

import "time"

type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusDone    RequestStatus = "done"
	StatusError   RequestStatus = "error"
)

// Request is a lift repair request collected by the intake bot.
type Request struct {
	ID          int64 // Stable sequence number, bound to staff-chat buttons
	Name        string
	Phone       string // +38XXXXXXXXXX
	District    string
	Address     string // "<canonical street>, <building>"
	Entrance    string
	Issue       string
	Status      RequestStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	ProcessedBy string
	UserID      int64 // Requester chat
	StaffChatID int64
	StaffMsgID  int // 0 until the staff message is delivered
}

// Unfinished reports whether the request still needs staff attention.
func (r Request) Unfinished() bool {
	return r.Status != StatusDone
}

// AddressPoint is one entrance of a serviced building.
type AddressPoint struct {
	District string
	Street   string
	Building string
	Entrance string
	Lat      float64
	Lon      float64
	Radius   float64 // meters
	Active   bool
}

// ScheduleEntry is one planned maintenance date filed under a free-form address key.
// A zero Date marks a key whose stored date did not form a calendar day.
type ScheduleEntry struct {
	Key  string
	Date time.Time
}

// ScheduleRow is the stored form of a schedule date: month "2006-01" plus day.
type ScheduleRow struct {
	Address string
	Month   string
	Day     int
}

// Entry converts the row, leaving Date zero when month/day are not a real date.
func (r ScheduleRow) Entry() ScheduleEntry {
	month, err := time.Parse("2006-01", r.Month)
	if err != nil || r.Day < 1 {
		return ScheduleEntry{Key: r.Address}
	}
	date := time.Date(month.Year(), month.Month(), r.Day, 0, 0, 0, 0, time.UTC)
	if date.Month() != month.Month() {
		return ScheduleEntry{Key: r.Address}
	}
	return ScheduleEntry{Key: r.Address, Date: date}
}

// StaffMember is a user authorized to act in a section's staff chat.
type StaffMember struct {
	Section        string
	UserID         int64
	Representative bool
}

// MaintenanceLog is a verified technician check-in.
type MaintenanceLog struct {
	ID           int64
	MechanicName string
	District     string
	Address      string // "<street> <building>"
	Entrance     string
	Date         time.Time
	PhotoFileID  string
	Verified     bool
	CreatedAt    time.Time
}
