package appointments

import "time"

// SourceBookingRequest marks appointments created by the staff approval flow.
const SourceBookingRequest = "booking_request"

// Appointment is a confirmed clinic visit.
type Appointment struct {
	ID               string     `json:"id"`
	SlotID           string     `json:"slot_id,omitempty"`
	FirstName        string     `json:"first_name"`
	Surname          string     `json:"surname,omitempty"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            time.Time  `json:"end_at"`
	Location         string     `json:"location,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	BookingRequestID string     `json:"booking_request_id,omitempty"`
	Source           string     `json:"source"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}
