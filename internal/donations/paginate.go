package donations

import "doacao/internal/domain"

// PageSize is the admin listing page size.
const PageSize = 20

type Page struct {
	Items      []domain.DonationStatusView `json:"items"`
	Total      int                         `json:"total"`
	Page       int                         `json:"page"`
	TotalPages int                         `json:"total_pages"`
}

// Paginate slices views into 1-based pages. Out of range pages are empty.
func Paginate(views []domain.DonationStatusView, page int) Page {
	if page < 1 {
		page = 1
	}
	total := len(views)
	out := Page{
		Items:      []domain.DonationStatusView{},
		Total:      total,
		Page:       page,
		TotalPages: (total + PageSize - 1) / PageSize,
	}
	if page > out.TotalPages {
		return out
	}
	start := (page - 1) * PageSize
	end := min(start+PageSize, total)
	out.Items = views[start:end]
	return out
}
