package handlers

import (
	"github.com/dordunu1/taskboard/internal/board"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/dto"
)

func taskToResponse(t dom.Task) dto.TaskResponse {
	links := t.Links
	if links == nil {
		links = []string{}
	}
	atts := make([]dto.AttachmentResponse, len(t.Attachments))
	for i, a := range t.Attachments {
		atts[i] = attachmentToResponse(a)
	}
	return dto.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueDate:     t.DueDate,
		Assignee:    t.Assignee,
		Links:       links,
		Attachments: atts,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func attachmentToResponse(a dom.MediaAttachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:         a.ID,
		FileName:   a.FileName,
		FileURL:    a.FileURL,
		FileType:   a.FileType,
		FileSize:   a.FileSize,
		UploadedAt: a.UploadedAt,
		UploadedBy: a.UploadedBy,
	}
}

func commentToResponse(c dom.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		Text:      c.Text,
		UserName:  c.UserName,
		CreatedAt: c.CreatedAt,
	}
}

func boardToResponse(tasks []dom.Task, loaded bool) dto.BoardResponse {
	cols := board.Group(tasks)
	out := dto.BoardResponse{Loaded: loaded, Total: cols.Len()}
	for _, col := range cols.Ordered() {
		items := make([]dto.TaskResponse, len(col.Tasks))
		for i, t := range col.Tasks {
			items[i] = taskToResponse(t)
		}
		out.Columns = append(out.Columns, dto.ColumnResponse{
			Status: string(col.Status),
			Label:  col.Label,
			Count:  len(items),
			Tasks:  items,
		})
	}
	return out
}

func userToResponse(u dom.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Provider:    u.Provider,
	}
}
