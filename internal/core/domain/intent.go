package domain

type Intent string

const (
	IntentBrowse         Intent = "browse"
	IntentAddToCart      Intent = "add_to_cart"
	IntentInventory      Intent = "inventory"
	IntentCheckout       Intent = "checkout"
	IntentProductDetails Intent = "product_details"
	IntentOther          Intent = "other"
)
