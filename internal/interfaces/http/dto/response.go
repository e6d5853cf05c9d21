package dto

import (
	"time"

	"github.com/bizdash/backend/internal/domain/shared"
)

// Response is the envelope of every API reply
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries paging for list replies
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// OK wraps data in a success envelope
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Page wraps one page of items; a non-positive page size falls back to the default
func Page[T any](p shared.Paginated[T]) Response {
	if p.PageSize <= 0 {
		p = shared.NewPaginated(p.Items, p.Total, p.Page, shared.DefaultPageSize)
	}
	return Response{
		Success: true,
		Data:    p.Items,
		Meta: &Meta{
			Total:      p.Total,
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalPages: p.TotalPages,
		},
	}
}

// Fail builds an error envelope. Domain codes are normalized to API codes.
func Fail(code, message, requestID string) Response {
	return Response{
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
}

// WithDetails attaches per-field validation failures to an error envelope
func (r Response) WithDetails(details []ValidationDetail) Response {
	if r.Error != nil {
		info := *r.Error
		info.Details = details
		r.Error = &info
	}
	return r
}

// IDRequest binds the :id path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// MonthQuery selects a calendar month; blank means the current one
type MonthQuery struct {
	Month string `form:"month" binding:"omitempty,len=7"`
}
