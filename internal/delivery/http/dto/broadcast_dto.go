package dto

import "signalhub/internal/usecase"

// BroadcastRequest is the body of broadcast create and update
type BroadcastRequest struct {
	Title    string `json:"title" validate:"max=256"`
	Content  string `json:"content" validate:"required"`
	Audience string `json:"audience" default:"all" validate:"oneof=all free pro elite"`
}

// ToInput converts the request for the broadcast service
func (r *BroadcastRequest) ToInput() usecase.BroadcastInput {
	return usecase.BroadcastInput{Title: r.Title, Content: r.Content, Audience: r.Audience}
}

// ConfirmRequest echoes the token returned by prepare
type ConfirmRequest struct {
	ConfirmationToken string `json:"confirmation_token"`
}
