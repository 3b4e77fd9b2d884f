package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/orionhq/riskgate/broker"
)

// Sync reconciles open reservations against broker order state:
// canceled/expired/rejected orders release their hold, filled or
// partially filled orders spend it with the actual fill figures, and
// orders the broker no longer knows about are released. Transitions
// are keyed by order_id and only touch open reservations, so the sweep
// is idempotent and safe to run alongside new evaluations.
func (l *Ledger) Sync(ctx context.Context, b broker.Broker) (int, error) {
	s, ok, err := l.Active()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	orders, err := b.ListOrders(ctx, "all")
	if err != nil {
		return 0, fmt.Errorf("list broker orders: %w", err)
	}
	byID := make(map[string]broker.Order, len(orders))
	for _, o := range orders {
		if o.ID != "" {
			byID[o.ID] = o
		}
	}

	open, err := l.openOrderIDs(s.ID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, oid := range open {
		o, known := byID[oid]
		if !known {
			if err := l.ReleaseByOrder(oid); err != nil {
				return updated, err
			}
			updated++
			continue
		}
		switch strings.ToLower(o.Status) {
		case "canceled", "cancelled", "expired", "rejected":
			if err := l.ReleaseByOrder(oid); err != nil {
				return updated, err
			}
			updated++
		case "filled", "partially_filled":
			var fq, fp *float64
			if o.FilledQty > 0 {
				fq = &o.FilledQty
			}
			if o.FilledAvgPrice > 0 {
				fp = &o.FilledAvgPrice
			}
			if err := l.SpendByOrder(oid, fq, fp); err != nil {
				return updated, err
			}
			updated++
		}
	}
	return updated, nil
}

func (l *Ledger) openOrderIDs(sessionID int64) ([]string, error) {
	var ids []string
	err := l.db.Select(&ids, l.db.Rebind(`
		SELECT order_id FROM session_reservations
		WHERE session_id = ? AND status = ? AND order_id IS NOT NULL`),
		sessionID, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("open reservations: %w", err)
	}
	return ids, nil
}
