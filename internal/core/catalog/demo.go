package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/shopassist/internal/core/domain"
)

// DemoProducts is the demo store's catalog in registration order.
func DemoProducts() []domain.Product {
	p := func(id, title, desc, category string, price int64) domain.Product {
		return domain.Product{ID: id, Title: title, Description: desc, Category: category, Price: decimal.NewFromInt(price)}
	}
	return []domain.Product{
		p("p01", "Black Cotton Shirt", "Men's black cotton shirt", "shirts", 1299),
		p("p02", "Blue Denim Shirt", "Casual blue denim shirt", "shirts", 1899),
		p("p03", "White Linen Shirt", "Breathable linen shirt", "shirts", 1499),
		p("p04", "Slim Chino Pant", "Stretch cotton chino in khaki", "pants", 2499),
		p("p05", "Relaxed Denim Pant", "Mid-rise relaxed fit denim", "pants", 2299),
		p("p06", "Pleated Wool Trouser", "Formal pleated wool trouser", "pants", 2699),
		p("p07", "Silk Kurta Set", "Festive silk kurta with churidar", "ethnic", 3499),
		p("p08", "Cotton Kurta", "Everyday printed cotton kurta", "ethnic", 2999),
		p("p09", "Jogger Set", "Fleece jogger and hoodie set", "athleisure", 1599),
		p("p10", "Track Jacket", "Lightweight zip track jacket", "athleisure", 1799),
	}
}

// DemoStock is the starting inventory for DemoProducts.
func DemoStock() map[string]map[domain.Size]int {
	return map[string]map[domain.Size]int{
		"p01": {domain.SizeM: 5, domain.SizeL: 3},
		"p02": {domain.SizeM: 2, domain.SizeL: 2},
		"p03": {domain.SizeM: 4, domain.SizeL: 0},
		"p04": {domain.SizeS: 2, domain.SizeM: 3, domain.SizeL: 1},
		"p05": {domain.SizeM: 2, domain.SizeL: 1},
		"p06": {domain.SizeM: 0, domain.SizeL: 0},
		"p07": {domain.SizeM: 1, domain.SizeL: 1},
		"p08": {domain.SizeS: 1, domain.SizeM: 2, domain.SizeL: 2},
		"p09": {domain.SizeM: 4, domain.SizeL: 3},
		"p10": {domain.SizeM: 2, domain.SizeXL: 2},
	}
}
