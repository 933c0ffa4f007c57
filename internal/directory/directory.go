// Package directory is the read-only client for the portal's user
// directory service. The communication core never owns user identity; it
// looks display names and roles up here.
package directory

import (
	"context"
)

type User struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Directory interface {
	// ListUsers returns every directory user except `excluding`.
	ListUsers(ctx context.Context, excluding uint) ([]User, error)
}
