package domain

import "fmt"

// ComposeStatus renders the post announcing the current price of a usable snapshot
func ComposeStatus(p *ProductSnapshot) string {
	if *p.DiscountPercent > 0 {
		return fmt.Sprintf("%s is %d%% off on Steam for %s USD", *p.Name, *p.DiscountPercent, *p.FinalPriceFormatted)
	}
	return fmt.Sprintf("%s is NOT currently on sale on Steam - Regular price: %s USD", *p.Name, *p.FinalPriceFormatted)
}
