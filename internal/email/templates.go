package email

import (
	"github.com/dukerupert/goodboy/internal/domain"
)

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// OrderItem is one rendered order line.
type OrderItem struct {
	Name     string
	Quantity int
	Price    string
}

// OrderConfirmationEmail represents an order confirmation email
type OrderConfirmationEmail struct {
	OrderID      string
	Email        string
	CustomerName string
	Items        []OrderItem
	Total        string
	TrackingURL  string
}

func (e OrderConfirmationEmail) Subject() string {
	return "Order Confirmation - #" + e.OrderID
}

func (e OrderConfirmationEmail) TemplateName() string {
	return "order_confirmation.html"
}

// NewOrderConfirmationEmail renders prices in rand with two decimals.
// trackingURL may be empty.
func NewOrderConfirmationEmail(o *domain.Order, trackingURL string) OrderConfirmationEmail {
	data := OrderConfirmationEmail{
		OrderID:      o.ID,
		Email:        o.Customer.Email,
		CustomerName: o.Customer.Name,
		Total:        formatRand(o.Total.StringFixed(2)),
		TrackingURL:  trackingURL,
	}
	for _, li := range o.Items {
		data.Items = append(data.Items, OrderItem{
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    formatRand(li.Price.StringFixed(2)),
		})
	}
	return data
}

func formatRand(amount string) string {
	return "R" + amount
}
