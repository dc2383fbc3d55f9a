// lumen/types/user.go
package types

type LoginRequest struct {
	Username  string `json:"username"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

type UpdateUserRequest struct {
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}
