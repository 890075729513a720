package pagination

const (
	// DefaultPageSize is used when a caller passes no page size.
	DefaultPageSize = 20

	// MaxPageSize is the largest page the upstreams serve.
	MaxPageSize = 100
)

// OffsetCount is the upstream window.
type OffsetCount struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// Metadata describes one page of a result set.
type Metadata struct {
	Offset      int  `json:"offset"`
	Count       int  `json:"count"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasMore     bool `json:"has_more"`
	From        int  `json:"from"`
	To          int  `json:"to"`
}

// ToOffsetCount converts a 1-based page. page is clamped to >= 1 and
// pageSize to [1, MaxPageSize]; 0 means DefaultPageSize.
func ToOffsetCount(page, pageSize int) OffsetCount {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return OffsetCount{Offset: (page - 1) * pageSize, Count: pageSize}
}

// ToMetadata derives page metadata. From and To are 1-based and inclusive;
// an empty result yields From 0.
func ToMetadata(total, offset, count int) Metadata {
	if count < 1 {
		count = 1
	}
	if offset < 0 {
		offset = 0
	}
	if total < 0 {
		total = 0
	}

	to := min(offset+count, total)
	from := offset + 1
	if to < from {
		from = 0
		to = 0
	}
	return Metadata{
		Offset:      offset,
		Count:       count,
		CurrentPage: offset/count + 1,
		TotalPages:  (total + count - 1) / count,
		HasMore:     offset+count < total,
		From:        from,
		To:          to,
	}
}
