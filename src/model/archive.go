package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DispatchArchive is the relational mirror of a DispatchRecord, used
// for reporting queries the Redis ledger cannot answer. The ledger in
// Redis stays the record of truth.
type DispatchArchive struct {
	ID uint `gorm:"primaryKey" json:"id"`

	DispatchID string `gorm:"uniqueIndex;size:64" json:"dispatch_id"`
	UserID     string `gorm:"index;size:64" json:"user_id"`
	ConfigName string `gorm:"size:128" json:"config_name"`
	ExchangeID string `gorm:"size:32" json:"exchange_id"`
	Symbol     string `gorm:"size:32" json:"symbol"`
	Side       string `gorm:"size:8" json:"side"`
	OrderType  string `gorm:"size:16" json:"order_type"`

	Status          string          `gorm:"index;size:24" json:"status"`
	ExchangeOrderID string          `gorm:"size:64" json:"exchange_order_id"`
	FilledAmount    decimal.Decimal `gorm:"type:numeric" json:"filled_amount"`
	AvgPrice        decimal.Decimal `gorm:"type:numeric" json:"avg_price"`
	RawStatus       string          `gorm:"size:32" json:"raw_status"`
	ErrorDetail     string          `gorm:"size:512" json:"error_detail"`

	ReceivedAt  time.Time `json:"received_at"`
	CompletedAt time.Time `gorm:"index" json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (DispatchArchive) TableName() string {
	return "dispatch_archive"
}

// NewDispatchArchive flattens a terminal ledger record into its
// relational mirror row.
func NewDispatchArchive(record *DispatchRecord) *DispatchArchive {
	row := &DispatchArchive{
		DispatchID:      record.ID,
		UserID:          record.UserID,
		Status:          record.Status,
		ExchangeOrderID: record.ExchangeOrderID,
		FilledAmount:    record.FilledAmount,
		AvgPrice:        record.AvgPrice,
		RawStatus:       record.RawStatus,
		ErrorDetail:     record.ErrorDetail,
		ReceivedAt:      record.ReceivedAt,
		CompletedAt:     record.CompletedAt,
	}
	if record.Config != nil {
		row.ConfigName = record.Config.Name
		row.ExchangeID = record.Config.ExchangeID
		row.Symbol = record.Config.Symbol
		row.Side = record.Config.Side
		row.OrderType = record.Config.OrderType
	} else {
		row.ConfigName = record.Alert.ConfigName
		row.Symbol = record.Alert.Symbol
	}
	return row
}
