package types

import "github.com/taskboard-dev/taskboard/internal/models"

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
}

func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
	}
}

type MemberResponse struct {
	UserResponse
	Role string `json:"role"`
}

// TaskDeletedPayload and AttachmentDeletedPayload identify rows that no
// longer exist so clients can drop them from local state.
type TaskDeletedPayload struct {
	ID        uint `json:"id"`
	ProjectID uint `json:"project_id"`
}

type AttachmentDeletedPayload struct {
	ID     uint `json:"id"`
	TaskID uint `json:"task_id"`
}
