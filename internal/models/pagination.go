package models

// Pagination describes list pagination metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	PageCount  int `json:"page_count"`
}

// ListQuery carries the presentation parameters shared by every list endpoint.
type ListQuery struct {
	Search   string
	SortKey  string
	SortDir  string
	Toggle   string
	Page     int
	PageSize int
}
