// Package inmem provides in-memory implementations used when no
// database is configured.
package inmem

import (
	"sync"

	"github.com/mgrabarczyk/perptrading/trading"
)

// TradeJournal keeps order records in memory, bounded to windowSize
// entries. The oldest records are dropped first.
type TradeJournal struct {
	recordsMutex sync.RWMutex
	records      []*trading.OrderRecord

	windowSize int
}

func NewTradeJournal(windowSize int) *TradeJournal {
	return &TradeJournal{
		records:    make([]*trading.OrderRecord, 0),
		windowSize: windowSize,
	}
}

func (tj *TradeJournal) RecordOrder(record *trading.OrderRecord) error {
	tj.recordsMutex.Lock()
	defer tj.recordsMutex.Unlock()

	tj.records = append(tj.records, record)

	if len(tj.records) > tj.windowSize {
		index := 0
		copy(tj.records[index:], tj.records[index+1:])
		tj.records[len(tj.records)-1] = nil
		tj.records = tj.records[:len(tj.records)-1]
	}

	return nil
}

func (tj *TradeJournal) RecentOrders(
	limit int,
) ([]*trading.OrderRecord, error) {
	tj.recordsMutex.RLock()
	defer tj.recordsMutex.RUnlock()

	if limit > len(tj.records) {
		limit = len(tj.records)
	}

	recent := make([]*trading.OrderRecord, 0, limit)

	for index := len(tj.records) - 1; index >= len(tj.records)-limit; index-- {
		recent = append(recent, tj.records[index])
	}

	return recent, nil
}
