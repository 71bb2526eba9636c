package models

// PagedResult is one page of a filtered query plus the size of the whole filtered set.
type PagedResult struct {
	Rows         []Record `json:"rows"`
	TotalRecords int64    `json:"total_records"`
	PageNumber   int      `json:"page_number"`
	PageSize     int      `json:"page_size"`
}

// NewPagedResult returns an empty, well-formed page.
func NewPagedResult(pageNumber, pageSize int) *PagedResult {
	return &PagedResult{
		Rows:       []Record{},
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}
}

// TotalPages returns the number of pages of PageSize needed for TotalRecords.
func (p *PagedResult) TotalPages() int64 {
	if p.PageSize <= 0 || p.TotalRecords <= 0 {
		return 0
	}
	size := int64(p.PageSize)
	return (p.TotalRecords + size - 1) / size
}

// HasNext reports whether a page exists after this one.
func (p *PagedResult) HasNext() bool {
	return int64(p.PageNumber) < p.TotalPages()
}
