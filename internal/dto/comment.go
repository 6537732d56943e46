package dto

import "time"

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
	// UserName is the display name shown with the comment. Defaults to the
	// caller's profile name.
	UserName string `json:"user_name" binding:"max=120"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Text      string    `json:"text"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

type ListCommentsResponse struct {
	Items []CommentResponse `json:"items"`
}
