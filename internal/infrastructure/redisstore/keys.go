package redisstore

import (
	"strings"

	"github.com/Zhima-Mochi/stock-ledger/internal/domain/token"
)

// Key layout is shared with existing data and must not change.
const (
	stockKeyPrefix       = "stock:"
	recordKeyPrefix      = "stock_record:"
	recordIndexKeyPrefix = "stock_record_index:"
	tokenKeyPrefix       = "token:"
)

func StockKey(productID string) string {
	return stockKeyPrefix + productID
}

func RecordKey(productID, recordID string) string {
	return RecordKeyPrefix(productID) + recordID
}

// RecordKeyPrefix is the record key without the trailing record id.
func RecordKeyPrefix(productID string) string {
	return recordKeyPrefix + productID + ":"
}

func RecordIndexKey(productID string) string {
	return recordIndexKeyPrefix + productID
}

func TokenKey(k token.Key) string {
	var b strings.Builder
	b.WriteString(tokenKeyPrefix)
	b.WriteString(k.Scene)
	b.WriteByte(':')
	b.WriteString(k.UserID)
	if k.BizID != "" {
		b.WriteByte(':')
		b.WriteString(k.BizID)
	}
	return b.String()
}
