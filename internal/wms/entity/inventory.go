package entity

import (
	"time"
)

// LotQualityStatus 批次质量状态
const (
	LotQualityPending = "PENDING" // 待检
	LotQualityPassed  = "PASSED"  // 合格
	LotQualityFailed  = "FAILED"  // 不合格
)

// Lot 物料批次。restore 时总是铸造新批次，已耗尽的批次不会复用。
type Lot struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID      string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_lot_tenant_no"`
	LotNo         string     `json:"lot_no" gorm:"size:50;not null;uniqueIndex:idx_lot_tenant_no"`
	ProductID     string     `json:"product_id" gorm:"size:32;not null;index"`
	WarehouseID   string     `json:"warehouse_id" gorm:"type:uuid;not null;index"`
	InitialQty    float64    `json:"initial_qty" gorm:"type:decimal(12,4);not null"`
	CurrentQty    float64    `json:"current_qty" gorm:"type:decimal(12,4);not null;default:0"`
	QualityStatus string     `json:"quality_status" gorm:"size:20;not null;default:PENDING"`
	ReceivedAt    time.Time  `json:"received_at" gorm:"not null;index"` // FIFO 排序键（生产/收货日期）
	Active        bool       `json:"active" gorm:"not null;default:true"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at" gorm:"index"`
}

func (Lot) TableName() string {
	return "mes_lots"
}

// Inventory 库存记录，键为 (tenant, warehouse, product, lot)。
// 仅由 LedgerService / ReservationService 修改。
type Inventory struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_inventory_key"`
	WarehouseID  string     `json:"warehouse_id" gorm:"type:uuid;not null;uniqueIndex:idx_inventory_key"`
	ProductID    string     `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_inventory_key"`
	LotID        *string    `json:"lot_id" gorm:"type:uuid;uniqueIndex:idx_inventory_key"`
	AvailableQty float64    `json:"available_qty" gorm:"type:decimal(12,4);not null;default:0"`
	ReservedQty  float64    `json:"reserved_qty" gorm:"type:decimal(12,4);not null;default:0"`
	LastTxAt     *time.Time `json:"last_tx_at"`
	LastTxType   string     `json:"last_tx_type" gorm:"size:20"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Lot       *Lot       `json:"lot,omitempty" gorm:"foreignKey:LotID"`
	Warehouse *Warehouse `json:"warehouse,omitempty" gorm:"foreignKey:WarehouseID"`
}

func (Inventory) TableName() string {
	return "mes_inventory"
}

// TransactionType 库存交易类型
const (
	TxTypeIssueOut     = "ISSUE_OUT"     // 领料出库
	TxTypeReturnIn     = "RETURN_IN"     // 退料入库
	TxTypeRestoreIn    = "RESTORE_IN"    // 检验合格回库
	TxTypeQuarantineIn = "QUARANTINE_IN" // 不合格品入隔离仓
	TxTypeProductionIn = "PRODUCTION_IN" // 生产入库
	TxTypeDisposalOut  = "DISPOSAL_OUT"  // 报废出库
	TxTypeShippingOut  = "SHIPPING_OUT"  // 销售发货出库
	TxTypeReversal     = "REVERSAL"      // 冲销
)

// StockTransaction 库存交易流水，只追加不修改。
// 任意 (warehouse, product, lot) 的当前余额等于其流水带符号数量之和。
type StockTransaction struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID      string    `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_stock_tx_tenant_no"`
	TxNo          string    `json:"tx_no" gorm:"size:50;not null;uniqueIndex:idx_stock_tx_tenant_no"`
	Type          string    `json:"type" gorm:"size:20;not null"`
	WarehouseID   string    `json:"warehouse_id" gorm:"type:uuid;not null;index"`
	ProductID     string    `json:"product_id" gorm:"size:32;not null;index"`
	LotID         *string   `json:"lot_id" gorm:"type:uuid;index"`
	LotNo         string    `json:"lot_no" gorm:"size:50"`
	Quantity      float64   `json:"quantity" gorm:"type:decimal(12,4);not null"` // 正=入，负=出
	ReferenceType string    `json:"reference_type" gorm:"size:20;not null"`      // MR, RET, DSP, SHP
	ReferenceID   string    `json:"reference_id" gorm:"size:64;not null"`
	ReferenceNo   string    `json:"reference_no" gorm:"size:50"`
	ReversalOfID  *string   `json:"reversal_of_id" gorm:"type:uuid"` // 被冲销的原始流水
	Notes         string    `json:"notes" gorm:"type:text"`
	CreatedBy     string    `json:"created_by" gorm:"size:64;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (StockTransaction) TableName() string {
	return "mes_stock_transactions"
}

// SequenceCounter 单据/流水编号计数器（redis 不可用时的数据库兜底）
type SequenceCounter struct {
	TenantID string `json:"tenant_id" gorm:"primaryKey;size:32"`
	Kind     string `json:"kind" gorm:"primaryKey;size:20"`
	Day      string `json:"day" gorm:"primaryKey;size:8"`
	Value    int64  `json:"value" gorm:"not null;default:0"`
}

func (SequenceCounter) TableName() string {
	return "mes_sequence_counters"
}
