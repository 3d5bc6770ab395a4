package broker

import (
	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// bookEntry is an open paper order resting on a symbol's book.
type bookEntry struct {
	Price   decimal.Decimal
	Seq     uint64
	OrderID string
}

// bidLess orders buys by price descending, then arrival. Min() is the most
// aggressive buy.
func bidLess(a, b bookEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.Seq < b.Seq
}

// askLess orders sells by price ascending, then arrival.
func askLess(a, b bookEntry) bool {
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.Seq < b.Seq
}

// book holds the resting orders of one symbol. Not safe for concurrent use;
// the paper broker serializes access.
type book struct {
	bids  *btree.BTreeG[bookEntry]
	asks  *btree.BTreeG[bookEntry]
	index map[string]bookEntry // order id → entry
}

func newBook() *book {
	const degree = 32
	return &book{
		bids:  btree.NewG[bookEntry](degree, bidLess),
		asks:  btree.NewG[bookEntry](degree, askLess),
		index: make(map[string]bookEntry),
	}
}

func (b *book) insert(side domain.Side, e bookEntry) {
	if side == domain.SideBuy {
		b.bids.ReplaceOrInsert(e)
	} else {
		b.asks.ReplaceOrInsert(e)
	}
	b.index[e.OrderID] = e
}

// remove is a no-op for unknown ids.
func (b *book) remove(orderID string) {
	e, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	b.bids.Delete(e)
	b.asks.Delete(e)
}

// crossing returns, in priority order, the ids of resting orders whose limit
// is marketable against a quote at price: buys at or above it, sells at or
// below it.
func (b *book) crossing(price decimal.Decimal) []string {
	var ids []string
	b.bids.Ascend(func(e bookEntry) bool {
		if e.Price.LessThan(price) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	b.asks.Ascend(func(e bookEntry) bool {
		if e.Price.GreaterThan(price) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	return ids
}

func (b *book) len() int {
	return len(b.index)
}
