package model

// PurchaseAggregate is sum(quantity) grouped by (customer, product).
type PurchaseAggregate struct {
	CustomerID int64   `json:"customer_id"`
	ProductID  int64   `json:"product_id"`
	Quantity   float64 `json:"quantity"`
}

type PopularProduct struct {
	ProductID     int64 `json:"product_id"`
	PurchaseCount int64 `json:"purchase_count"`
}

type CatalogStats struct {
	TotalCustomers int64 `json:"total_customers"`
	TotalProducts  int64 `json:"total_products"`
	TotalPurchases int64 `json:"total_purchases"`
}
