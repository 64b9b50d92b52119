package ebay

// Wire types for the eBay Browse API getItem response. Only the fields the
// collector reads are declared.

type itemResponse struct {
	ItemID          string           `json:"itemId"`
	Title           string           `json:"title"`
	Price           moneyValue       `json:"price"`
	MarketingPrice  *marketingPrice  `json:"marketingPrice,omitempty"`
	ShippingOptions []shippingOption `json:"shippingOptions,omitempty"`
	Condition       string           `json:"condition"`
	BuyingOptions   []string         `json:"buyingOptions"`
	Seller          *sellerInfo      `json:"seller,omitempty"`
	Image           *imageInfo       `json:"image,omitempty"`
	CategoryPath    string           `json:"categoryPath,omitempty"`
	BidCount        int              `json:"bidCount,omitempty"`
	ItemEndDate     string           `json:"itemEndDate,omitempty"`
}

type moneyValue struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type marketingPrice struct {
	OriginalPrice *moneyValue `json:"originalPrice,omitempty"`
}

type shippingOption struct {
	ShippingCost *moneyValue `json:"shippingCost,omitempty"`
}

type sellerInfo struct {
	Username string `json:"username"`
}

type imageInfo struct {
	ImageURL string `json:"imageUrl"`
}
