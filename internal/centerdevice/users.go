package centerdevice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserInvited UserStatus = "invited"
	UserPending UserStatus = "pending"
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// UnmarshalJSON rejects unknown statuses.
func (s *UserStatus) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch UserStatus(v) {
	case UserInvited, UserPending, UserActive, UserBlocked:
		*s = UserStatus(v)

		return nil
	default:
		return fmt.Errorf("centerdevice: unknown user status %q", v)
	}
}

// UserRole is the permission level of a user.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleInternal UserRole = "internal"
	RoleExternal UserRole = "external"
	RoleGuest    UserRole = "guest"
)

// UnmarshalJSON rejects unknown roles.
func (r *UserRole) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch UserRole(v) {
	case RoleAdmin, RoleInternal, RoleExternal, RoleGuest:
		*r = UserRole(v)

		return nil
	default:
		return fmt.Errorf("centerdevice: unknown user role %q", v)
	}
}

// User is an account in the caller's organization.
type User struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"first-name"`
	LastName      string     `json:"last-name"`
	Email         string     `json:"email"`
	Status        UserStatus `json:"status"`
	Role          UserRole   `json:"role"`
	TechnicalUser *bool      `json:"technical-user,omitempty"`
}

type usersResult struct {
	Users []User `json:"users"`
}

// SearchUsers lists users. all includes users that are not active.
func (s *Session) SearchUsers(ctx context.Context, all bool) ([]User, error) {
	q := url.Values{}
	q.Set("all", strconv.FormatBool(all))

	resp, err := s.do(ctx, request{
		method:   http.MethodGet,
		url:      s.c.apiURL("/v2/users") + "?" + q.Encode(),
		header:   jsonHeader(),
		expected: http.StatusOK,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result usersResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, newError(ErrResponse, "decoding users", err)
	}

	return result.Users, nil
}
