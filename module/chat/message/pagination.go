package message

import (
	chatmodel "ChatLink/module/chat/model"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Pagination describes an offset window over a conversation. The query runs
// newest-first, so page 1 holds the most recent messages; hasMore means older
// pages exist below the window, hasRecent means newer pages exist above it.
type Pagination struct {
	Total     int64 `json:"total"`
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Pages     int   `json:"pages"`
	HasMore   bool  `json:"hasMore"`
	HasRecent bool  `json:"hasRecent"`
}

// Paginate computes the window metadata for a conversation of total messages.
func Paginate(total int64, page, limit int) Pagination {
	page, limit = Normalize(page, limit)
	skip := int64(page-1) * int64(limit)

	pages := int(total / int64(limit))
	if total%int64(limit) != 0 {
		pages++
	}

	return Pagination{
		Total:     total,
		Page:      page,
		Limit:     limit,
		Pages:     pages,
		HasMore:   skip+int64(limit) < total,
		HasRecent: page > 1,
	}
}

// Normalize applies the protocol defaults for out-of-range page/limit.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}

// Chronological reverses a newest-first query result in place and returns it;
// clients always receive messages oldest-first.
func Chronological(msgs []*chatmodel.Message) []*chatmodel.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
