package instrumentation

import "strings"

// ExtractUserDomain extracts the domain part from an email address.
// Sender addresses are reduced to their domain before they reach metrics
// or non-PII audit logs.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.TrimSuffix(parts[1], ">")
	}

	return "unknown"
}

// Operation types for API metrics and spans.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationModify   = "modify"
	OperationAppend   = "append"
	OperationGenerate = "generate"
	OperationLookup   = "lookup"
)
