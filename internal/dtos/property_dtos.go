package dtos

type AssignCleanerRequest struct {
	CleanerID   *string `json:"cleaner_id,omitempty" validate:"omitempty,uuid"`
	Phone       string  `json:"phone,omitempty" validate:"required_without=CleanerID,omitempty,min=7,max=32"`
	DisplayName string  `json:"display_name,omitempty" validate:"max=120"`
}

type AssignCleanerResponse struct {
	OK         bool   `json:"ok"`
	PropertyID string `json:"property_id"`
	CleanerID  string `json:"cleaner_id"`
}
