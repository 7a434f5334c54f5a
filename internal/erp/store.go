package erp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store provides the business-document operations used by action handlers.
type Store struct {
	orm *gorm.DB
}

// NewStore wraps the provided GORM handle.
func NewStore(orm *gorm.DB) (*Store, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Store{orm: orm}, nil
}

// Migrate creates the business-document tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.orm.WithContext(ctx).AutoMigrate(
		&Customer{},
		&Item{},
		&Warehouse{},
		&SalesOrder{},
		&SalesOrderItem{},
		&SalesInvoice{},
		&ItemPrice{},
		&Bin{},
		&Company{},
	)
}

func docName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.New().String()[:8]))
}

// CreateCustomer inserts a customer with default classification values.
func (s *Store) CreateCustomer(ctx context.Context, customerName string) (*Customer, error) {
	c := Customer{
		Name:         docName("CUST"),
		CustomerName: customerName,
	}
	if err := s.orm.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomer fetches one customer by its display name.
func (s *Store) GetCustomer(ctx context.Context, customerName string) (*Customer, error) {
	var c Customer
	err := s.orm.WithContext(ctx).Where("customer_name = ?", customerName).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer %q: %w", customerName, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns up to limit customers.
func (s *Store) ListCustomers(ctx context.Context, limit int) ([]Customer, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Customer
	err := s.orm.WithContext(ctx).Order("customer_name").Limit(limit).Find(&out).Error
	return out, err
}

// CreateItem inserts a stock item. An empty group falls back to the default.
func (s *Store) CreateItem(ctx context.Context, itemName, itemGroup string) (*Item, error) {
	if itemGroup == "" {
		itemGroup = "All Item Groups"
	}
	it := Item{
		ItemCode:  itemName,
		ItemName:  itemName,
		ItemGroup: itemGroup,
	}
	if err := s.orm.WithContext(ctx).Create(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateWarehouse inserts a warehouse attached to company.
func (s *Store) CreateWarehouse(ctx context.Context, warehouseName, company string) (*Warehouse, error) {
	w := Warehouse{
		WarehouseName: warehouseName,
		Company:       company,
	}
	if err := s.orm.WithContext(ctx).Create(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// OrderLine is one requested sales order position.
type OrderLine struct {
	ItemCode string
	Qty      float64
	Rate     float64
}

// CreateSalesOrder inserts an order with its lines and computed total.
func (s *Store) CreateSalesOrder(ctx context.Context, customer, company string, lines []OrderLine) (*SalesOrder, error) {
	so := SalesOrder{
		Name:     docName("SO"),
		Customer: customer,
		Company:  company,
	}
	for _, line := range lines {
		qty := line.Qty
		if qty <= 0 {
			qty = 1
		}
		so.Items = append(so.Items, SalesOrderItem{
			ItemCode: line.ItemCode,
			Qty:      qty,
			Rate:     line.Rate,
		})
		so.GrandTotal += qty * line.Rate
	}
	if err := s.orm.WithContext(ctx).Create(&so).Error; err != nil {
		return nil, err
	}
	return &so, nil
}

// StockLevels returns non-empty bins, optionally filtered by item and warehouse.
func (s *Store) StockLevels(ctx context.Context, itemCode, warehouse string) ([]Bin, error) {
	q := s.orm.WithContext(ctx).Where("actual_qty > 0")
	if itemCode != "" {
		q = q.Where("item_code = ?", itemCode)
	}
	if warehouse != "" {
		q = q.Where("warehouse = ?", warehouse)
	}
	var bins []Bin
	err := q.Order("item_code, warehouse").Limit(50).Find(&bins).Error
	return bins, err
}

// SalesByCustomer is one row of the 30-day sales report.
type SalesByCustomer struct {
	Customer     string  `json:"customer"`
	TotalSales   float64 `json:"total_sales"`
	InvoiceCount int64   `json:"invoice_count"`
}

// SalesReport aggregates submitted invoices from the last 30 days by customer.
func (s *Store) SalesReport(ctx context.Context) ([]SalesByCustomer, error) {
	since := time.Now().AddDate(0, 0, -30)
	var rows []SalesByCustomer
	err := s.orm.WithContext(ctx).
		Model(&SalesInvoice{}).
		Select("customer, SUM(grand_total) AS total_sales, COUNT(*) AS invoice_count").
		Where("submitted = ? AND posting_date >= ?", true, since).
		Group("customer").
		Order("total_sales DESC").
		Limit(10).
		Scan(&rows).Error
	return rows, err
}

// OutstandingInvoices returns submitted invoices with a balance due.
func (s *Store) OutstandingInvoices(ctx context.Context) ([]SalesInvoice, error) {
	var out []SalesInvoice
	err := s.orm.WithContext(ctx).
		Where("submitted = ? AND outstanding_amount > 0", true).
		Order("posting_date DESC").
		Limit(20).
		Find(&out).Error
	return out, err
}

// UpsertItemPrice sets the Standard Selling rate for an item, creating the
// price row when missing.
func (s *Store) UpsertItemPrice(ctx context.Context, itemCode string, rate float64) (*ItemPrice, error) {
	var price ItemPrice
	err := s.orm.WithContext(ctx).
		Where("item_code = ? AND price_list = ?", itemCode, "Standard Selling").
		First(&price).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		price = ItemPrice{ItemCode: itemCode, PriceList: "Standard Selling", PriceListRate: rate}
		if err := s.orm.WithContext(ctx).Create(&price).Error; err != nil {
			return nil, err
		}
		return &price, nil
	case err != nil:
		return nil, err
	}

	price.PriceListRate = rate
	if err := s.orm.WithContext(ctx).Save(&price).Error; err != nil {
		return nil, err
	}
	return &price, nil
}

// DefaultCompany returns the first company on record, or empty when none exist.
func (s *Store) DefaultCompany(ctx context.Context) (string, error) {
	var c Company
	err := s.orm.WithContext(ctx).Order("created_at").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.CompanyName, nil
}
