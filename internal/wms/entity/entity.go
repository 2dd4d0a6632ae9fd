package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有WMS表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Warehouse{},
		&Product{},

		// 库存
		&Lot{},
		&Inventory{},
		&StockTransaction{},
		&SequenceCounter{},

		// 单据
		&MaterialRequest{},
		&MaterialRequestItem{},
		&ReturnOrder{},
		&ReturnItem{},
		&DisposalOrder{},
		&DisposalItem{},
		&ShipmentOrder{},
		&ShipmentItem{},
		&ItemAllocation{},

		// 质量
		&QualityStandard{},
	)
}
