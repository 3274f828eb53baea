package stock

import (
	"errors"
	"time"
)

var ErrInvalidRecord = errors.New("stock: invalid record")

type OperationType string

const (
	OperationDeduct   OperationType = "DEDUCT"
	OperationAdd      OperationType = "ADD"
	OperationFreeze   OperationType = "FREEZE"
	OperationUnfreeze OperationType = "UNFREEZE"
)

// Record is the audit entry written for one ledger mutation.
// JSON field names are shared with records already sitting in the fast store.
type Record struct {
	RecordID      string        `json:"recordId"`
	ProductID     string        `json:"productId"`
	OperationType OperationType `json:"operationType"`
	Amount        int64         `json:"amount"`
	BeforeStock   *int64        `json:"beforeStock,omitempty"`
	AfterStock    *int64        `json:"afterStock,omitempty"`
	UserID        string        `json:"userId"`
	OrderID       string        `json:"orderId,omitempty"`
	Scene         string        `json:"scene"`
	Status        Status        `json:"status"`
	ExtInfo       string        `json:"extInfo,omitempty"`
	CreateTime    time.Time     `json:"createTime"`
	UpdateTime    *time.Time    `json:"updateTime,omitempty"`
	ReconcileTime *time.Time    `json:"reconcileTime,omitempty"`
	Remark        string        `json:"remark,omitempty"`
}

// Metadata carries the caller-supplied fields of a deduction record.
type Metadata struct {
	RecordID string
	UserID   string
	OrderID  string
	Scene    string
	ExtInfo  string
	Remark   string
}

// NewDeductRecord builds a PENDING deduction record. Before/after stock are filled in by the store
// inside the atomic step.
func NewDeductRecord(productID string, amount int64, md Metadata) (*Record, error) {
	if md.RecordID == "" || productID == "" {
		return nil, ErrInvalidRecord
	}
	return &Record{
		RecordID:      md.RecordID,
		ProductID:     productID,
		OperationType: OperationDeduct,
		Amount:        amount,
		UserID:        md.UserID,
		OrderID:       md.OrderID,
		Scene:         md.Scene,
		Status:        StatusPending,
		ExtInfo:       md.ExtInfo,
		CreateTime:    time.Now().UTC(),
		Remark:        md.Remark,
	}, nil
}
