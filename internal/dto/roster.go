package dto

// TeamRef identifies a team the caller oversees.
type TeamRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// StudentTeamProgress is the per-team breakdown of a student's standing.
type StudentTeamProgress struct {
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	Progress    int    `json:"progress"`
	LORUnlocked bool   `json:"lorUnlocked"`
}

// StudentInfo aggregates one student across every team the caller oversees.
type StudentInfo struct {
	UserID         string                `json:"userId"`
	Name           string                `json:"name"`
	Email          string                `json:"email"`
	ImageURL       string                `json:"imageUrl"`
	Role           string                `json:"role"`
	Progress       int                   `json:"progress"`
	AttendanceDays float64               `json:"attendanceDays"`
	LORUnlocked    bool                  `json:"lorUnlocked"`
	Projects       []string              `json:"projects"`
	Teams          []StudentTeamProgress `json:"teams"`
}

// StudentInfoResponse is the roster payload for leaders and team admins.
type StudentInfoResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Teams    []TeamRef     `json:"teams"`
	Students []StudentInfo `json:"students"`
}
