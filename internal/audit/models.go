package audit

import "time"

// Category classifies audit events by their primary purpose so sinks can route
// them to different retention tiers.
type Category string

const (
	// CategoryCompliance covers account lifecycle changes.
	CategoryCompliance Category = "compliance"
	// CategorySecurity covers authentication and authorization failures.
	CategorySecurity Category = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations Category = "operations"
)

type Action string

const (
	ActionUserCreated      Action = "user_created"
	ActionUserUpdated      Action = "user_updated"
	ActionUserSelfUpdated  Action = "user_self_updated"
	ActionUserDeleted      Action = "user_deleted"
	ActionLoginSucceeded   Action = "login_succeeded"
	ActionLoginFailed      Action = "login_failed"
	ActionPermissionDenied Action = "permission_denied"
)

var categories = map[Action]Category{
	ActionUserCreated:      CategoryCompliance,
	ActionUserUpdated:      CategoryCompliance,
	ActionUserSelfUpdated:  CategoryCompliance,
	ActionUserDeleted:      CategoryCompliance,
	ActionLoginFailed:      CategorySecurity,
	ActionPermissionDenied: CategorySecurity,
	ActionLoginSucceeded:   CategoryOperations,
}

// Category returns the category for a; unknown actions are operations.
func (a Action) Category() Category {
	if c, ok := categories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It is transport-agnostic
// so sinks can fan out.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
	Action    Action    `json:"action"`
	// SubjectID is the user the action was applied to.
	SubjectID string `json:"subject_id,omitempty"`
	// ActorID is the authenticated user performing the action, when different.
	ActorID   string  `json:"actor_id,omitempty"`
	Email     string  `json:"email,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
	ClientIP  string  `json:"client_ip,omitempty"`
	UserAgent string  `json:"user_agent,omitempty"`
	Client    *Client `json:"client,omitempty"`
}

// Client is the parsed User-Agent.
type Client struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}
