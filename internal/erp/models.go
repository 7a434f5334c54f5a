package erp

import (
	"time"

	"github.com/google/uuid"
)

// Business documents the action handlers operate on. Fields cover what the
// handlers read and write; the wider business schema is out of scope.

type Customer struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string    `gorm:"type:text;uniqueIndex;not null"`
	CustomerName  string    `gorm:"type:text;not null"`
	CustomerType  string    `gorm:"type:text;not null;default:'Individual'"`
	Territory     string    `gorm:"type:text;not null;default:'All Territories'"`
	CustomerGroup string    `gorm:"type:text;not null;default:'All Customer Groups'"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

type Item struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ItemCode    string    `gorm:"type:text;uniqueIndex;not null"`
	ItemName    string    `gorm:"type:text;not null"`
	ItemGroup   string    `gorm:"type:text;not null;default:'All Item Groups'"`
	StockUOM    string    `gorm:"type:text;not null;default:'Nos'"`
	IsStockItem bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

type Warehouse struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WarehouseName string    `gorm:"type:text;uniqueIndex;not null"`
	Company       string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

type SalesOrder struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string           `gorm:"type:text;uniqueIndex;not null"`
	Customer   string           `gorm:"type:text;not null;index"`
	Company    string           `gorm:"type:text"`
	GrandTotal float64          `gorm:"not null;default:0"`
	Items      []SalesOrderItem `gorm:"foreignKey:SalesOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime"`
}

type SalesOrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SalesOrderID uuid.UUID `gorm:"type:uuid;not null;index"`
	ItemCode     string    `gorm:"type:text;not null"`
	Qty          float64   `gorm:"not null;default:1"`
	Rate         float64   `gorm:"not null;default:0"`
}

type SalesInvoice struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string    `gorm:"type:text;uniqueIndex;not null"`
	Customer          string    `gorm:"type:text;not null;index"`
	PostingDate       time.Time `gorm:"type:timestamptz;not null;index"`
	GrandTotal        float64   `gorm:"not null;default:0"`
	OutstandingAmount float64   `gorm:"not null;default:0"`
	Submitted         bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

type ItemPrice struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ItemCode      string    `gorm:"type:text;not null;uniqueIndex:idx_item_price,priority:1"`
	PriceList     string    `gorm:"type:text;not null;uniqueIndex:idx_item_price,priority:2;default:'Standard Selling'"`
	PriceListRate float64   `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Bin tracks on-hand stock per item and warehouse.
type Bin struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ItemCode      string    `gorm:"type:text;not null;uniqueIndex:idx_bin,priority:1"`
	Warehouse     string    `gorm:"type:text;not null;uniqueIndex:idx_bin,priority:2"`
	ActualQty     float64   `gorm:"not null;default:0"`
	ValuationRate float64   `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

type Company struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyName string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
