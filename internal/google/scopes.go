package google

// DefaultOAuthScopes are the Google OAuth scopes dealscout needs.
//
// The scopes provide access to:
//   - Gmail: search and read messages, mark read, create and apply labels
//   - Google Sheets: create the log sheet and append rows
var DefaultOAuthScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.labels",
	"https://www.googleapis.com/auth/spreadsheets",
}
