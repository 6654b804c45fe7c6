package domain

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Closed orders accept no further status changes.
func (s OrderStatus) Closed() bool { return s == OrderDelivered || s == OrderCancelled }

type OrderItem struct {
	ProductID string  `json:"productId"`
	SellerID  string  `json:"sellerId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     float64         `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	SellerIDs       map[string]bool `json:"sellerIds"`
	ShippingAddress string          `json:"shippingAddress"`
	OrderDate       string          `json:"orderDate"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}
