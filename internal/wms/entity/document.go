package entity

import (
	"time"
)

// DocKind 单据类型
const (
	DocKindMaterialRequest = "MR"  // 领料单
	DocKindReturn          = "RET" // 退料单
	DocKindDisposal        = "DSP" // 报废单
	DocKindShipment        = "SHP" // 发货单
)

// 领料单状态
const (
	MRStatusPending   = "PENDING"
	MRStatusApproved  = "APPROVED"
	MRStatusRejected  = "REJECTED"
	MRStatusIssued    = "ISSUED"
	MRStatusCompleted = "COMPLETED"
	MRStatusCancelled = "CANCELLED"
)

// 退料单状态
const (
	ReturnStatusPending    = "PENDING"
	ReturnStatusApproved   = "APPROVED"
	ReturnStatusRejected   = "REJECTED"
	ReturnStatusReceived   = "RECEIVED"
	ReturnStatusInspecting = "INSPECTING"
	ReturnStatusCompleted  = "COMPLETED"
	ReturnStatusCancelled  = "CANCELLED"
)

// 报废单状态
const (
	DisposalStatusPending   = "PENDING"
	DisposalStatusApproved  = "APPROVED"
	DisposalStatusRejected  = "REJECTED"
	DisposalStatusProcessed = "PROCESSED"
	DisposalStatusCompleted = "COMPLETED"
	DisposalStatusCancelled = "CANCELLED"
)

// 发货单状态
const (
	ShipmentStatusPending    = "PENDING"
	ShipmentStatusProcessing = "PROCESSING"
	ShipmentStatusShipped    = "SHIPPED"
	ShipmentStatusCancelled  = "CANCELLED"
)

// 行项检验状态
const (
	InspectionNotRequired = "NOT_REQUIRED"
	InspectionPending     = "PENDING"
	InspectionPassed      = "PASSED"
	InspectionFailed      = "FAILED"
)

// 退料类型
const (
	ReturnTypeUnused    = "UNUSED"    // 未使用退回
	ReturnTypeDefective = "DEFECTIVE" // 不良品退回，需检验
)

// MaterialRequest 领料单
type MaterialRequest struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_mr_tenant_no"`
	DocNo        string     `json:"doc_no" gorm:"size:50;not null;uniqueIndex:idx_mr_tenant_no"`
	WarehouseID  string     `json:"warehouse_id" gorm:"type:uuid;not null"`
	Status       string     `json:"status" gorm:"size:20;not null;default:PENDING"`
	Purpose      string     `json:"purpose" gorm:"size:200"`
	RequestedBy  string     `json:"requested_by" gorm:"size:64;not null"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:64"`
	ApprovedAt   *time.Time `json:"approved_at"`
	IssuedAt     *time.Time `json:"issued_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	RejectReason string     `json:"reject_reason" gorm:"type:text"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Items []MaterialRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID"`
}

func (MaterialRequest) TableName() string {
	return "mes_material_requests"
}

// MaterialRequestItem 领料单行项
type MaterialRequestItem struct {
	ID           string   `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	RequestID    string   `json:"request_id" gorm:"type:uuid;not null;index"`
	ProductID    string   `json:"product_id" gorm:"size:32;not null"`
	ProductCode  string   `json:"product_code" gorm:"size:64"`
	PinnedLotID  *string  `json:"pinned_lot_id" gorm:"type:uuid"` // 指定批次领料
	RequestedQty float64  `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	ApprovedQty  *float64 `json:"approved_qty" gorm:"type:decimal(12,4)"`
	ExecutedQty  *float64 `json:"executed_qty" gorm:"type:decimal(12,4)"`

	Allocations []ItemAllocation `json:"allocations,omitempty" gorm:"foreignKey:ItemID"`
}

func (MaterialRequestItem) TableName() string {
	return "mes_material_request_items"
}

// ReturnOrder 退料单
type ReturnOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_return_tenant_no"`
	DocNo        string     `json:"doc_no" gorm:"size:50;not null;uniqueIndex:idx_return_tenant_no"`
	WarehouseID  string     `json:"warehouse_id" gorm:"type:uuid;not null"` // 退回目标仓库
	ReturnType   string     `json:"return_type" gorm:"size:20;not null;default:UNUSED"`
	Status       string     `json:"status" gorm:"size:20;not null;default:PENDING"`
	RequestedBy  string     `json:"requested_by" gorm:"size:64;not null"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:64"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ReceivedAt   *time.Time `json:"received_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	RejectReason string     `json:"reject_reason" gorm:"type:text"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Items []ReturnItem `json:"items,omitempty" gorm:"foreignKey:ReturnID"`
}

func (ReturnOrder) TableName() string {
	return "mes_return_orders"
}

// ReturnItem 退料单行项
type ReturnItem struct {
	ID               string   `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ReturnID         string   `json:"return_id" gorm:"type:uuid;not null;index"`
	ProductID        string   `json:"product_id" gorm:"size:32;not null"`
	ProductCode      string   `json:"product_code" gorm:"size:64"`
	RequestedQty     float64  `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	ApprovedQty      *float64 `json:"approved_qty" gorm:"type:decimal(12,4)"`
	ExecutedQty      *float64 `json:"executed_qty" gorm:"type:decimal(12,4)"`
	InspectionStatus string   `json:"inspection_status" gorm:"size:20;not null;default:NOT_REQUIRED"`
	ReportURL        string   `json:"report_url" gorm:"size:500"`     // 检验报告（minio 对象路径）
	ResultLotID      *string  `json:"result_lot_id" gorm:"type:uuid"` // 检验后铸造的新批次

	Allocations []ItemAllocation `json:"allocations,omitempty" gorm:"foreignKey:ItemID"`
}

func (ReturnItem) TableName() string {
	return "mes_return_items"
}

// DisposalOrder 报废单
type DisposalOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_disposal_tenant_no"`
	DocNo        string     `json:"doc_no" gorm:"size:50;not null;uniqueIndex:idx_disposal_tenant_no"`
	WarehouseID  string     `json:"warehouse_id" gorm:"type:uuid;not null"`
	Status       string     `json:"status" gorm:"size:20;not null;default:PENDING"`
	Reason       string     `json:"reason" gorm:"type:text"`
	Method       string     `json:"method" gorm:"size:50"`    // 完成时记录的处置方式
	Location     string     `json:"location" gorm:"size:200"` // 处置地点
	RequestedBy  string     `json:"requested_by" gorm:"size:64;not null"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:64"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	RejectReason string     `json:"reject_reason" gorm:"type:text"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Items []DisposalItem `json:"items,omitempty" gorm:"foreignKey:DisposalID"`
}

func (DisposalOrder) TableName() string {
	return "mes_disposal_orders"
}

// DisposalItem 报废单行项
type DisposalItem struct {
	ID           string   `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	DisposalID   string   `json:"disposal_id" gorm:"type:uuid;not null;index"`
	ProductID    string   `json:"product_id" gorm:"size:32;not null"`
	ProductCode  string   `json:"product_code" gorm:"size:64"`
	PinnedLotID  *string  `json:"pinned_lot_id" gorm:"type:uuid"`
	RequestedQty float64  `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	ApprovedQty  *float64 `json:"approved_qty" gorm:"type:decimal(12,4)"`
	ExecutedQty  *float64 `json:"executed_qty" gorm:"type:decimal(12,4)"`

	Allocations []ItemAllocation `json:"allocations,omitempty" gorm:"foreignKey:ItemID"`
}

func (DisposalItem) TableName() string {
	return "mes_disposal_items"
}

// ShipmentOrder 发货单
type ShipmentOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID     string     `json:"tenant_id" gorm:"size:32;not null;uniqueIndex:idx_shipment_tenant_no"`
	DocNo        string     `json:"doc_no" gorm:"size:50;not null;uniqueIndex:idx_shipment_tenant_no"`
	WarehouseID  string     `json:"warehouse_id" gorm:"type:uuid;not null"`
	SalesOrderNo string     `json:"sales_order_no" gorm:"size:50"`
	Status       string     `json:"status" gorm:"size:20;not null;default:PENDING"`
	TrackingNo   string     `json:"tracking_no" gorm:"size:64"`
	RequestedBy  string     `json:"requested_by" gorm:"size:64;not null"`
	ProcessedAt  *time.Time `json:"processed_at"`
	ShippedAt    *time.Time `json:"shipped_at"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Items []ShipmentItem `json:"items,omitempty" gorm:"foreignKey:ShipmentID"`
}

func (ShipmentOrder) TableName() string {
	return "mes_shipment_orders"
}

// ShipmentItem 发货单行项
type ShipmentItem struct {
	ID               string   `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ShipmentID       string   `json:"shipment_id" gorm:"type:uuid;not null;index"`
	ProductID        string   `json:"product_id" gorm:"size:32;not null"`
	ProductCode      string   `json:"product_code" gorm:"size:64"`
	RequestedQty     float64  `json:"requested_qty" gorm:"type:decimal(12,4);not null"`
	ExecutedQty      *float64 `json:"executed_qty" gorm:"type:decimal(12,4)"`
	InspectionStatus string   `json:"inspection_status" gorm:"size:20;not null;default:NOT_REQUIRED"`
	ReportURL        string   `json:"report_url" gorm:"size:500"`

	Allocations []ItemAllocation `json:"allocations,omitempty" gorm:"foreignKey:ItemID"`
}

func (ShipmentItem) TableName() string {
	return "mes_shipment_items"
}

// ItemAllocation 行项与批次的分配记录，关联产生的库存流水
type ItemAllocation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ItemID    string    `json:"item_id" gorm:"type:uuid;not null;index"`
	DocKind   string    `json:"doc_kind" gorm:"size:10;not null"`
	LotID     string    `json:"lot_id" gorm:"type:uuid;not null"`
	LotNo     string    `json:"lot_no" gorm:"size:50"`
	Quantity  float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	StockTxID string    `json:"stock_tx_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at"`

	Lot *Lot `json:"lot,omitempty" gorm:"foreignKey:LotID"`
}

func (ItemAllocation) TableName() string {
	return "mes_item_allocations"
}

// 状态机访问方法，四种单据共用同一工作流引擎。

func (d *MaterialRequest) DocID() string         { return d.ID }
func (d *MaterialRequest) CurrentStatus() string { return d.Status }
func (d *MaterialRequest) SetStatus(s string)    { d.Status = s }

func (d *ReturnOrder) DocID() string         { return d.ID }
func (d *ReturnOrder) CurrentStatus() string { return d.Status }
func (d *ReturnOrder) SetStatus(s string)    { d.Status = s }

func (d *DisposalOrder) DocID() string         { return d.ID }
func (d *DisposalOrder) CurrentStatus() string { return d.Status }
func (d *DisposalOrder) SetStatus(s string)    { d.Status = s }

func (d *ShipmentOrder) DocID() string         { return d.ID }
func (d *ShipmentOrder) CurrentStatus() string { return d.Status }
func (d *ShipmentOrder) SetStatus(s string)    { d.Status = s }
