package entity

import (
	"time"
)

// WarehouseType 仓库类型
const (
	WarehouseTypeNormal     = "NORMAL"     // 普通仓
	WarehouseTypeQuarantine = "QUARANTINE" // 隔离仓（不良品）
)

// WarehouseStatus 仓库状态
const (
	WarehouseStatusActive   = "ACTIVE"
	WarehouseStatusInactive = "INACTIVE"
)

// Warehouse 仓库
type Warehouse struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID  string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_warehouse_tenant_code"`
	Code      string     `json:"code" gorm:"size:50;not null;uniqueIndex:idx_warehouse_tenant_code"`
	Name      string     `json:"name" gorm:"size:100;not null"`
	Type      string     `json:"type" gorm:"size:20;not null;default:NORMAL"`
	Address   string     `json:"address" gorm:"size:500"`
	Manager   string     `json:"manager" gorm:"size:64"`
	Status    string     `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	Notes     string     `json:"notes" gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (Warehouse) TableName() string {
	return "mes_warehouses"
}

// Product 产品主数据（只读协作方，由上游系统维护）
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	TenantID  string    `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_product_tenant_code"`
	Code      string    `json:"code" gorm:"size:64;not null;uniqueIndex:idx_product_tenant_code"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Unit      string    `json:"unit" gorm:"size:20;not null;default:pcs"`
	Status    string    `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "mes_products"
}
