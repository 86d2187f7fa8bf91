package mcpserver

import "zcoin/internal/ledger"

func clampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = ledger.DefaultHistoryLimit
	}
	if limit > ledger.MaxHistoryLimit {
		limit = ledger.MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
