package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Action 单据动作
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionExecute  Action = "execute" // 领料/收货/报废处理/发货处理
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Transition 状态迁移：动作允许的起始状态和目标状态
type Transition struct {
	From []string
	To   string
}

// TransitionTable 某一单据类型的完整迁移表
type TransitionTable map[Action]Transition

// 各单据类型的迁移表。终态（COMPLETED/REJECTED/CANCELLED/SHIPPED）不出现在任何 From 中。
var (
	materialRequestTransitions = TransitionTable{
		ActionApprove:  {From: []string{"PENDING"}, To: "APPROVED"},
		ActionReject:   {From: []string{"PENDING"}, To: "REJECTED"},
		ActionExecute:  {From: []string{"APPROVED"}, To: "ISSUED"},
		ActionComplete: {From: []string{"ISSUED"}, To: "COMPLETED"},
		ActionCancel:   {From: []string{"PENDING", "APPROVED"}, To: "CANCELLED"},
	}

	returnTransitions = TransitionTable{
		ActionApprove:  {From: []string{"PENDING"}, To: "APPROVED"},
		ActionReject:   {From: []string{"PENDING"}, To: "REJECTED"},
		ActionExecute:  {From: []string{"APPROVED"}, To: "RECEIVED"},
		ActionComplete: {From: []string{"RECEIVED", "INSPECTING"}, To: "COMPLETED"},
		ActionCancel:   {From: []string{"PENDING", "APPROVED"}, To: "CANCELLED"},
	}

	disposalTransitions = TransitionTable{
		ActionApprove:  {From: []string{"PENDING"}, To: "APPROVED"},
		ActionReject:   {From: []string{"PENDING"}, To: "REJECTED"},
		ActionExecute:  {From: []string{"APPROVED"}, To: "PROCESSED"},
		ActionComplete: {From: []string{"PROCESSED"}, To: "COMPLETED"},
		ActionCancel:   {From: []string{"PENDING", "APPROVED"}, To: "CANCELLED"},
	}

	shipmentTransitions = TransitionTable{
		ActionExecute:  {From: []string{"PENDING"}, To: "PROCESSING"},
		ActionComplete: {From: []string{"PROCESSING"}, To: "SHIPPED"},
		ActionCancel:   {From: []string{"PENDING", "PROCESSING"}, To: "CANCELLED"},
	}
)

// WorkflowDoc 可被状态机驱动的单据
type WorkflowDoc interface {
	DocID() string
	CurrentStatus() string
	SetStatus(status string)
}

// SideEffect 在守卫通过后、状态落库前，在同一事务内执行的副作用。
// 返回非空字符串可覆盖迁移表的目标状态（如退料收货后自动进入 INSPECTING）。
type SideEffect func(tx *gorm.DB) (string, error)

// WorkflowEngine 通用单据状态机。四种单据共享同一引擎，
// 各自只提供迁移表和 execute 副作用。
type WorkflowEngine struct {
	db *gorm.DB
}

func NewWorkflowEngine(db *gorm.DB) *WorkflowEngine {
	return &WorkflowEngine{db: db}
}

// Transition 执行一次状态迁移：锁定单据行重读当前状态，校验迁移表，
// 执行副作用，最后更新状态。守卫失败不产生任何副作用。
// model 必须是指向单据实体的指针，迁移成功后其内存状态同步更新。
func (e *WorkflowEngine) Transition(ctx context.Context, table TransitionTable, model WorkflowDoc, action Action, side SideEffect) error {
	t, ok := table[action]
	if !ok {
		return fmt.Errorf("%w: 单据不支持动作 %s", ErrInvalidStateTransition, action)
	}

	return runInTx(ctx, e.db, func(tx *gorm.DB) error {
		// 锁行重读，串行化同一单据上的并发迁移
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(model, "id = ?", model.DocID()).Error; err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: 单据 %s", ErrNotFound, model.DocID())
			}
			return err
		}

		current := model.CurrentStatus()
		allowed := false
		for _, from := range t.From {
			if current == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s 不允许从状态 %s 发起", ErrInvalidStateTransition, action, current)
		}

		to := t.To
		if side != nil {
			override, err := side(tx)
			if err != nil {
				return err
			}
			if override != "" {
				to = override
			}
		}

		now := time.Now()
		model.SetStatus(to)
		if err := tx.Model(model).Where("id = ?", model.DocID()).
			Updates(map[string]interface{}{"status": to, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("更新单据状态失败: %w", err)
		}
		return nil
	})
}
