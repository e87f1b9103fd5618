package models

// Category is the derived view of one puzzle category: a group channel
// whose name encodes the ID and label, plus its completion role and
// leaderboard channel. It is never stored; every field is re-derived from
// the live directory.
type Category struct {
	ID             int    `json:"id"`
	Label          string `json:"label"`
	GroupID        string `json:"group_id"`
	CompletionRole *Role  `json:"completion_role,omitempty"`
	LeaderboardID  string `json:"leaderboard_id,omitempty"`
}

// Level is the derived view of one puzzle level: its discussion channel,
// the hidden solution channel and the gating role.
type Level struct {
	Number   int      `json:"number"`
	Channel  *Channel `json:"channel,omitempty"`
	Solution *Channel `json:"solution,omitempty"`
	Role     *Role    `json:"role,omitempty"`
}

// Exists reports whether any of the level's directory objects are live.
func (l *Level) Exists() bool {
	return l != nil && (l.Channel != nil || l.Solution != nil || l.Role != nil)
}

// ProgressState classifies a member's standing within a category.
type ProgressState string

const (
	// ProgressOnLevel means the member holds exactly one level gating role.
	ProgressOnLevel ProgressState = "on_level"
	// ProgressCompleted means the member holds the category completion role.
	ProgressCompleted ProgressState = "completed"
	// ProgressUninitialized means the member holds neither; the repair
	// routine moves such members onto level 1.
	ProgressUninitialized ProgressState = "uninitialized"
)

// Progress is a member's derived standing in one category. Level is only
// meaningful when State is ProgressOnLevel.
type Progress struct {
	State ProgressState `json:"state"`
	Level int           `json:"level,omitempty"`
}

// Score converts a standing into leaderboard points: a member on level n
// has solved n-1 levels; a completed member has solved all of them.
func (p Progress) Score(levelCount int) int {
	switch p.State {
	case ProgressCompleted:
		return levelCount
	case ProgressOnLevel:
		return p.Level - 1
	default:
		return 0
	}
}

// LeaderboardEntry is one rendered row: a member and their score.
type LeaderboardEntry struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// CategoryInfo summarizes one category for the info command and ops API.
type CategoryInfo struct {
	ID         int    `json:"id"`
	Label      string `json:"label"`
	LevelCount int    `json:"level_count"`
}
