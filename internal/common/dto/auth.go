package dto

// UserInfo represents the viewer information stored in the context
type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Elevated bool   `json:"elevated"`
}
