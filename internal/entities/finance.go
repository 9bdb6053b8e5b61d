package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusPending BatchStatus = "pending"
	BatchStatusOpen    BatchStatus = "open"
	BatchStatusClosed  BatchStatus = "closed"
)

type FinancialBatch struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:50" json:"name"`
	CampusID      *uint           `json:"campus_id,omitempty"`
	Status        BatchStatus     `gorm:"size:20" json:"status"`
	StartDateTime *time.Time      `json:"start_date_time,omitempty"`
	EndDateTime   *time.Time      `json:"end_date_time,omitempty"`
	ControlAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"control_amount"`
	Provenance
}

func (FinancialBatch) TableName() string {
	return "financial_batches"
}

// FinancialAccount is a fund. Sub-funds point at their parent.
type FinancialAccount struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:50;index" json:"name"`
	PublicName      string `gorm:"size:50" json:"public_name"`
	GlCode          string `gorm:"size:50" json:"gl_code,omitempty"`
	ParentAccountID *uint  `gorm:"index" json:"parent_account_id,omitempty"`
	CampusID        *uint  `json:"campus_id,omitempty"`
	IsActive        bool   `json:"is_active"`
	IsTaxDeductible bool   `json:"is_tax_deductible"`
	Provenance
}

func (FinancialAccount) TableName() string {
	return "financial_accounts"
}

type FinancialTransaction struct {
	ID                      uint                         `gorm:"primaryKey" json:"id"`
	BatchID                 *uint                        `gorm:"index" json:"batch_id,omitempty"`
	AuthorizedPersonAliasID *uint                        `gorm:"index" json:"authorized_person_alias_id,omitempty"`
	TransactionDateTime     *time.Time                   `json:"transaction_date_time,omitempty"`
	TransactionCode         string                       `gorm:"size:50" json:"transaction_code,omitempty"`
	Summary                 string                       `gorm:"type:text" json:"summary,omitempty"`
	TransactionTypeValueID  *uint                        `json:"transaction_type_value_id,omitempty"`
	SourceTypeValueID       *uint                        `json:"source_type_value_id,omitempty"`
	PaymentDetail           *FinancialPaymentDetail      `gorm:"foreignKey:TransactionID" json:"payment_detail,omitempty"`
	Details                 []FinancialTransactionDetail `gorm:"foreignKey:TransactionID" json:"details,omitempty"`
	Refund                  *FinancialTransactionRefund  `gorm:"foreignKey:TransactionID" json:"refund,omitempty"`
	Provenance
}

func (FinancialTransaction) TableName() string {
	return "financial_transactions"
}

type FinancialTransactionDetail struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TransactionID uint            `gorm:"index" json:"transaction_id"`
	AccountID     uint            `gorm:"index" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Summary       string          `gorm:"size:500" json:"summary,omitempty"`
	Provenance
}

func (FinancialTransactionDetail) TableName() string {
	return "financial_transaction_details"
}

type FinancialPaymentDetail struct {
	ID                     uint   `gorm:"primaryKey" json:"id"`
	TransactionID          uint   `gorm:"uniqueIndex" json:"transaction_id"`
	CurrencyTypeValueID    *uint  `json:"currency_type_value_id,omitempty"`
	CreditCardTypeValueID  *uint  `json:"credit_card_type_value_id,omitempty"`
	AccountNumberMasked    string `gorm:"size:50" json:"account_number_masked,omitempty"`
	CreatedByPersonAliasID *uint  `json:"created_by_person_alias_id,omitempty"`
}

func (FinancialPaymentDetail) TableName() string {
	return "financial_payment_details"
}

type FinancialTransactionRefund struct {
	ID                     uint   `gorm:"primaryKey" json:"id"`
	TransactionID          uint   `gorm:"uniqueIndex" json:"transaction_id"`
	RefundReasonValueID    *uint  `json:"refund_reason_value_id,omitempty"`
	RefundReasonSummary    string `gorm:"size:500" json:"refund_reason_summary,omitempty"`
	CreatedByPersonAliasID *uint  `json:"created_by_person_alias_id,omitempty"`
}

func (FinancialTransactionRefund) TableName() string {
	return "financial_transaction_refunds"
}

type FinancialPledge struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	PersonAliasID          *uint           `gorm:"index" json:"person_alias_id,omitempty"`
	AccountID              *uint           `json:"account_id,omitempty"`
	TotalAmount            decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	StartDate              time.Time       `json:"start_date"`
	EndDate                time.Time       `json:"end_date"`
	PledgeFrequencyValueID *uint           `json:"pledge_frequency_value_id,omitempty"`
	Provenance
}

func (FinancialPledge) TableName() string {
	return "financial_pledges"
}

// FinancialPersonBankAccount stores a hash of routing and account number plus a
// masked account number. The clear account number is never stored.
type FinancialPersonBankAccount struct {
	ID                   uint   `gorm:"primaryKey" json:"id"`
	PersonAliasID        uint   `gorm:"uniqueIndex:idx_bank_account" json:"person_alias_id"`
	AccountNumberSecured string `gorm:"size:128;uniqueIndex:idx_bank_account" json:"-"`
	AccountNumberMasked  string `gorm:"size:50" json:"account_number_masked"`
	Provenance
}

func (FinancialPersonBankAccount) TableName() string {
	return "financial_person_bank_accounts"
}
