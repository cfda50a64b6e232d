package domain

import (
	"strings"
	"time"
)

type Customer struct {
	ID             string
	ShopID         string
	Name           string
	Phone          string
	PhoneSuffix    string
	CurrentBalance int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CustomerStats struct {
	TotalCharged     int64
	TotalUsed        int64
	TransactionCount int
}

type CustomerSort string

const (
	SortByName      CustomerSort = "name"
	SortByCreatedAt CustomerSort = "created_at"
	SortByBalance   CustomerSort = "current_balance"
)

type CustomerQuery struct {
	ShopID   string
	Search   string
	SortBy   CustomerSort
	Desc     bool
	Page     int
	PageSize int
}

// Normalize applies list defaults: name ascending, page 1, 20 rows.
func (q *CustomerQuery) Normalize() {
	switch q.SortBy {
	case SortByName, SortByCreatedAt, SortByBalance:
	default:
		q.SortBy = SortByName
		q.Desc = false
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
}

func (q CustomerQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func PhoneSuffix(phone string) string {
	d := DigitsOnly(phone)
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}

// MaskedPhone is what exports show when only the suffix is known.
func (c Customer) MaskedPhone() string {
	if c.Phone != "" {
		return c.Phone
	}
	return "010****" + c.PhoneSuffix
}

// ImportRow is one customer row of a bulk import.
type ImportRow struct {
	Name    string
	Phone   string
	Balance int64
}

type SkippedRow struct {
	Name   string
	Phone  string
	Reason string
}

type ImportResult struct {
	Total          int
	Imported       int
	Skipped        int
	Errors         []string
	SkippedDetails []SkippedRow
}
