// Package models defines the core domain models for the business-data
// service: companies, their invoices, industries, and the many-to-many
// association between companies and industries.
package models

import (
	"time"
)

// Company represents a company row. Code is the primary key, derived
// from Name at creation time and never regenerated afterwards.
type Company struct {
	// Code is the slug-derived, immutable identifier.
	Code string `gorm:"primaryKey;size:60" json:"code"`
	// Name is the company display name.
	Name string `gorm:"size:120;not null" json:"name"`
	// Description provides details about the company.
	Description string `gorm:"size:3000" json:"description"`
}

// Invoice represents a billed amount owed by a company.
//
// Paid and PaidDate are expected to move together (unpaid invoices carry
// a null paid_date), but the pair is not enforced anywhere and no
// pay-off operation exists yet.
type Invoice struct {
	// ID is assigned by the store and never reused.
	ID int `gorm:"primaryKey;autoIncrement" json:"id"`
	// CompCode references the owning company.
	CompCode string  `gorm:"column:comp_code;size:60;not null;index" json:"comp_code"`
	Company  Company `gorm:"foreignKey:CompCode;constraint:OnDelete:CASCADE" json:"-"`
	// Amt is the invoice amount, normalized to a number on write.
	Amt Amount `gorm:"type:numeric;not null" json:"amt"`
	// Paid reports whether the invoice has been settled.
	Paid bool `gorm:"not null;default:false" json:"paid"`
	// AddDate is set by the store on insert.
	AddDate time.Time `gorm:"autoCreateTime" json:"add_date"`
	// PaidDate is null until the invoice is settled.
	PaidDate *time.Time `json:"paid_date"`
}

// Industry represents an industry row. Code is slug-derived from Name.
type Industry struct {
	Code string `gorm:"primaryKey;size:60" json:"code"`
	Name string `gorm:"size:120;not null" json:"name"`
}

// CompanyIndustry links a company to an industry. The composite primary
// key makes duplicate associations a store-level conflict.
type CompanyIndustry struct {
	CompCode     string   `gorm:"column:comp_code;primaryKey;size:60" json:"comp_code"`
	IndustryCode string   `gorm:"column:industry_code;primaryKey;size:60" json:"industry_code"`
	Company      Company  `gorm:"foreignKey:CompCode;constraint:OnDelete:CASCADE" json:"-"`
	Industry     Industry `gorm:"foreignKey:IndustryCode;constraint:OnDelete:CASCADE" json:"-"`
}

// CompanyDetail is the composite read model for a single company: the
// company's own fields plus all of its invoices.
type CompanyDetail struct {
	Company
	Invoices []Invoice `json:"invoices"`
}
