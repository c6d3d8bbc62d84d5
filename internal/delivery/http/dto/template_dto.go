package dto

import "signalhub/internal/usecase"

// TemplateRequest is the body of template create and update
type TemplateRequest struct {
	Identifier string `json:"identifier" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=128"`
	Type       string `json:"type" validate:"required,oneof=spot futures broadcast general"`
	Content    string `json:"content" validate:"required"`
	IsActive   *bool  `json:"is_active"`
}

// ToInput converts the request for the template service
func (r *TemplateRequest) ToInput() usecase.TemplateInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return usecase.TemplateInput{
		Identifier: r.Identifier,
		Name:       r.Name,
		Type:       r.Type,
		Content:    r.Content,
		IsActive:   active,
	}
}

// PreviewRequest renders a stored template or ad-hoc content
type PreviewRequest struct {
	Identifier string            `json:"identifier" validate:"required_without=Content"`
	Content    string            `json:"content"`
	Type       string            `json:"type" validate:"omitempty,oneof=spot futures broadcast general"`
	Variables  map[string]string `json:"variables"`
}

// ToInput converts the request for the template service
func (r *PreviewRequest) ToInput() usecase.PreviewInput {
	return usecase.PreviewInput{
		Identifier: r.Identifier,
		Content:    r.Content,
		Type:       r.Type,
		Variables:  r.Variables,
	}
}
