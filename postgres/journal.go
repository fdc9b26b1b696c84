package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/mgrabarczyk/perptrading/trading"
)

// TradeJournal stores every order decision in the order_record table.
type TradeJournal struct {
	client *Client
}

func NewTradeJournal(client *Client) *TradeJournal {
	return &TradeJournal{client}
}

func (tj *TradeJournal) RecordOrder(record *trading.OrderRecord) error {
	query := `INSERT INTO
		order_record (
			id, symbol, side, notional, status,
			reason, exchange_order_id, time
		)
		VALUES (
			:id, :symbol, :side, :notional, :status,
			:reason, :exchange_order_id, :time
		)`

	recordRow, err := new(orderRecordRow).wrap(record)
	if err != nil {
		return fmt.Errorf(
			"could not convert order record [%v] to pg row: [%v]",
			record.ID,
			err,
		)
	}

	_, err = tj.client.instance().NamedExec(query, recordRow)
	if err != nil {
		return fmt.Errorf(
			"could not execute command for order record [%v]: [%v]",
			record.ID,
			err,
		)
	}

	return nil
}

func (tj *TradeJournal) RecentOrders(
	limit int,
) ([]*trading.OrderRecord, error) {
	query := `SELECT
		id, symbol, side, notional, status,
		reason, exchange_order_id, time
		FROM order_record
		ORDER BY time DESC
		LIMIT $1`

	var rows []orderRecordRow
	if err := tj.client.instance().Select(&rows, query, limit); err != nil {
		return nil, fmt.Errorf(
			"could not execute query for order records: [%v]",
			err,
		)
	}

	records := make([]*trading.OrderRecord, 0, len(rows))

	for _, row := range rows {
		record, err := row.unwrap()
		if err != nil {
			return nil, fmt.Errorf(
				"could not convert pg row [%v] to order record: [%v]",
				row.ID,
				err,
			)
		}

		records = append(records, record)
	}

	return records, nil
}

type orderRecordRow struct {
	ID              string
	Symbol          string
	Side            string
	Notional        pgtype.Numeric
	Status          string
	Reason          string
	ExchangeOrderID string `db:"exchange_order_id"`
	Time            time.Time
}

func (orr *orderRecordRow) wrap(
	record *trading.OrderRecord,
) (*orderRecordRow, error) {
	notional, err := floatToNumeric(record.Notional)
	if err != nil {
		return nil, err
	}

	orr.ID = record.ID
	orr.Symbol = string(record.Symbol)
	orr.Side = record.Side.String()
	orr.Notional = notional
	orr.Status = record.Status.String()
	orr.Reason = record.Reason
	orr.ExchangeOrderID = record.ExchangeOrderID
	orr.Time = record.Time

	return orr, nil
}

func (orr *orderRecordRow) unwrap() (*trading.OrderRecord, error) {
	side, err := trading.ParseOrderSide(orr.Side)
	if err != nil {
		return nil, err
	}

	status, err := trading.ParseOrderStatus(orr.Status)
	if err != nil {
		return nil, err
	}

	notional, err := numericToFloat(orr.Notional)
	if err != nil {
		return nil, err
	}

	return &trading.OrderRecord{
		ID:              orr.ID,
		Symbol:          trading.Symbol(orr.Symbol),
		Side:            side,
		Notional:        notional,
		Status:          status,
		Reason:          orr.Reason,
		ExchangeOrderID: orr.ExchangeOrderID,
		Time:            orr.Time,
	}, nil
}
