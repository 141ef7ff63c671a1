package models

import "time"

// Timing is one of the five WHO hand-hygiene moments.
type Timing int

const (
	TimingBeforePatientContact Timing = 1
	TimingBeforeAseptic        Timing = 2
	TimingAfterBodyFluid       Timing = 3
	TimingAfterPatientContact  Timing = 4
	TimingAfterSurroundings    Timing = 5
)

// TimingNames maps each timing to its display name on the observation form.
var TimingNames = map[Timing]string{
	TimingBeforePatientContact: "Before patient contact",
	TimingBeforeAseptic:        "Before aseptic procedure",
	TimingAfterBodyFluid:       "After body fluid exposure risk",
	TimingAfterPatientContact:  "After patient contact",
	TimingAfterSurroundings:    "After contact with patient surroundings",
}

// Valid reports whether t is one of the five moments.
func (t Timing) Valid() bool {
	return t >= TimingBeforePatientContact && t <= TimingAfterSurroundings
}

// Name returns the display name for the timing, or empty if invalid.
func (t Timing) Name() string {
	return TimingNames[t]
}

// Action is the hygiene behavior performed at a timing.
type Action string

const (
	ActionSanitizer Action = "hand_sanitizer"
	ActionWash      Action = "hand_wash"
	ActionNone      Action = "no_action"
)

// ActionNames maps each action to its display name on the observation form.
var ActionNames = map[Action]string{
	ActionSanitizer: "Hand sanitizer",
	ActionWash:      "Hand wash",
	ActionNone:      "No action",
}

// Actions lists the three actions in form order.
var Actions = []Action{ActionSanitizer, ActionWash, ActionNone}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := ActionNames[a]
	return ok
}

// HygieneRecord is a single logged hand-hygiene event.
//
// Timestamp is the authoritative event time in milliseconds since epoch and
// may be backdated by the user. RecorderName and FacilityName are snapshots
// of the acting user's profile at creation time and are never updated
// retroactively.
type HygieneRecord struct {
	ID           string `json:"id"`
	ScopeID      string `json:"scope_id"`
	UserID       string `json:"user_id,omitempty"`
	Timing       Timing `json:"timing"`
	Action       Action `json:"action"`
	Notes        string `json:"notes,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	RecorderName string `json:"recorder_name,omitempty"`
	FacilityName string `json:"facility_name,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// User is an authenticated identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserProfile holds display and observation-form fields for a user.
// TeamID, when non-empty, redirects the user's record scope to the team.
type UserProfile struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	FacilityName string    `json:"facility_name"`
	Department   string    `json:"department,omitempty"`
	Ward         string    `json:"ward,omitempty"`
	Section      string    `json:"section,omitempty"`
	Observer     string    `json:"observer,omitempty"`
	Address      string    `json:"address,omitempty"`
	TeamID       string    `json:"team_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Team is a named group of users sharing one record scope.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the aggregation result over a record set and time window.
// ByTiming always carries all five timings and ByAction all three actions,
// with zero counts for categories without matches.
type Stats struct {
	Total    int            `json:"total"`
	ByTiming map[Timing]int `json:"by_timing"`
	ByAction map[Action]int `json:"by_action"`
}
