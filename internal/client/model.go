// Package client provides models and repositories for deceased-client
// records tracked on behalf of an attorney tenant.
package client

import "time"

// Client is the person whose estate and policies are tracked. The id is
// immutable once created; contact fields may change on update.
type Client struct {
	ID          string     `json:"id"`
	AttorneyID  string     `json:"attorney_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// FullName returns the display name for the client.
func (c *Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
