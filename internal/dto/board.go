package dto

type ColumnResponse struct {
	Status string         `json:"status"`
	Label  string         `json:"label"`
	Count  int            `json:"count"`
	Tasks  []TaskResponse `json:"tasks"`
}

// BoardResponse is the grouped view of every task visible to the caller.
type BoardResponse struct {
	Loaded  bool             `json:"loaded"`
	Total   int              `json:"total"`
	Columns []ColumnResponse `json:"columns"`
}
