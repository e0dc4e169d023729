package domain

import "strconv"

// ProductSnapshot is the part of a storefront response the notifier cares about.
// A nil field means the storefront did not report it.
type ProductSnapshot struct {
	AppID               int     `json:"app_id"`
	Name                *string `json:"name,omitempty"`
	DiscountPercent     *int    `json:"discount_percent,omitempty"`
	FinalPriceFormatted *string `json:"final_formatted,omitempty"`
}

// Usable reports whether every field needed to compose a status is present
func (p *ProductSnapshot) Usable() bool {
	return p != nil && p.Name != nil && p.DiscountPercent != nil && p.FinalPriceFormatted != nil
}

func (p *ProductSnapshot) AppIDString() string {
	return strconv.Itoa(p.AppID)
}
