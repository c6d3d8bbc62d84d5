package dto

// CreateUserRequest creates an operator account
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" default:"OPERATOR" validate:"oneof=ADMIN OPERATOR VIEWER"`
}

// UpdateUserRequest changes an operator account; omitted fields stay as they are
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN OPERATOR VIEWER"`
	IsActive *bool   `json:"is_active"`
}
