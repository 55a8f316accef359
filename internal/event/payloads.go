package event

// Payload shapes for the catalog types. Serialized as JSON into the event
// store's payload column; field names are part of the broker contract.

type OrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"qty"`
}

type OrderCreated struct {
	OrderID  int64       `json:"orderId"`
	UserID   string      `json:"userId"`
	Items    []OrderItem `json:"items"`
	CouponID string      `json:"couponId,omitempty"`
}

type OrderConfirmed struct {
	OrderID int64  `json:"orderId"`
	UserID  string `json:"userId"`
	Address string `json:"address"`
}

type OrderCancelled struct {
	OrderID    int64       `json:"orderId"`
	UserID     string      `json:"userId"`
	Items      []OrderItem `json:"items"`
	UsedPoints int64       `json:"usedPoints,omitempty"`
	CouponID   string      `json:"couponId,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

type PaymentCompleted struct {
	OrderID    int64       `json:"orderId"`
	UserID     string      `json:"userId"`
	Items      []OrderItem `json:"items"`
	Amount     int64       `json:"amount"`
	UsedPoints int64       `json:"usedPoints,omitempty"`
	CouponID   string      `json:"couponId,omitempty"`
	Address    string      `json:"address,omitempty"`
}

type PaymentFailed struct {
	OrderID    int64  `json:"orderId"`
	UserID     string `json:"userId"`
	UsedPoints int64  `json:"usedPoints,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type InventoryInsufficient struct {
	OrderID           int64 `json:"orderId"`
	ProductID         int64 `json:"productId"`
	AvailableQuantity int   `json:"availableQuantity"`
}
