package domain

import "time"

// Policy is a stored Rego module that extends the built-in authorization rules.
// Rules must declare package eduplatform.authz.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
