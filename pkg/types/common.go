package types

import "time"

// GeoPoint is an indexable latitude/longitude pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Address is embedded in every geocoded document
type Address struct {
	AddressLine1 string    `json:"address_line_1"`
	AddressLine2 string    `json:"address_line_2"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	ZipCode      string    `json:"zip_code"`
	Country      string    `json:"country"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	FullAddress  string    `json:"full_address"`
	GeoPoint     *GeoPoint `json:"geo_point"`
}

// StateLog records one state transition of an appointment
type StateLog struct {
	ID               int64      `json:"id"`
	FromState        string     `json:"from_state"`
	ToState          string     `json:"to_state"`
	TriggeredByID    int64      `json:"triggered_by_id"`
	CreatedAt        *time.Time `json:"created_at"`
	TransitionAwayAt *time.Time `json:"transition_away_at"`
}

// AssignLog records one reassignment of an appointment
type AssignLog struct {
	ID         int64      `json:"id"`
	FromUserID *int64     `json:"from_user_id"`
	ToUserID   *int64     `json:"to_user_id"`
	CreatedAt  *time.Time `json:"created_at"`
}

// Comment is a staff note attached to an appointment
type Comment struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Comment   string     `json:"comment"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// State describes one node of the appointment state machine
type State struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
