package entity

import (
	"time"
)

// QualityDirection 质量标准方向
const (
	QualityDirectionOutgoing = "OUTGOING" // 出货检验
	QualityDirectionIncoming = "INCOMING" // 来料检验
)

// QualityStandard 质量标准。产品存在有效的出货标准时，发货行项需要检验。
type QualityStandard struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	TenantID  string     `json:"tenant_id" gorm:"size:32;not null;index"`
	ProductID string     `json:"product_id" gorm:"size:32;not null;index"`
	Direction string     `json:"direction" gorm:"size:20;not null;default:OUTGOING"`
	Name      string     `json:"name" gorm:"size:200;not null"`
	Criteria  string     `json:"criteria" gorm:"type:text"`
	Active    bool       `json:"active" gorm:"not null;default:true"`
	CreatedBy string     `json:"created_by" gorm:"size:64"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (QualityStandard) TableName() string {
	return "mes_quality_standards"
}
