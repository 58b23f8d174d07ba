package auth

// Scopes recognised by the habit API.
const (
	ScopeHabitsRead  = "habits:read"
	ScopeHabitsWrite = "habits:write"
)
