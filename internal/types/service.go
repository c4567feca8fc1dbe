package types

// Category represents service categories
type Category string

const (
	CategoryDocuments   Category = "documents"
	CategoryPicker      Category = "picker"
	CategoryMedia       Category = "media"
	CategoryPermissions Category = "permissions"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context provides execution context for services
type Context struct {
	CallerID *string `json:"caller_id,omitempty"`
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Ok builds a successful result
func Ok(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// Fail builds a failed result
func Fail(message string) *Result {
	msg := message
	return &Result{Success: false, Error: &msg}
}
