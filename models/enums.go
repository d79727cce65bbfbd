package models

import "strconv"

// OrderSide is the side of a book order.
type OrderSide uint8

const (
	NoOrderSide OrderSide = iota
	Buy
	Sell
)

func (s OrderSide) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case NoOrderSide:
		return "NO_ORDER_SIDE"
	default:
		return "OrderSide(" + strconv.Itoa(int(s)) + ")"
	}
}

// AggressorSide is the side that initiated a trade.
type AggressorSide uint8

const (
	NoAggressor AggressorSide = iota
	Buyer
	Seller
)

func (s AggressorSide) String() string {
	switch s {
	case Buyer:
		return "BUYER"
	case Seller:
		return "SELLER"
	case NoAggressor:
		return "NO_AGGRESSOR"
	default:
		return "AggressorSide(" + strconv.Itoa(int(s)) + ")"
	}
}

// BookAction is the mutation a delta applies to a book.
type BookAction uint8

const (
	Add BookAction = iota + 1
	Update
	Delete
	Clear
)

func (a BookAction) String() string {
	switch a {
	case Add:
		return "ADD"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Clear:
		return "CLEAR"
	default:
		return "BookAction(" + strconv.Itoa(int(a)) + ")"
	}
}

// RecordFlag bits carried in the flags field of book records.
type RecordFlag uint8

const (
	// FLast marks the last record of an update batch sharing one ts_event.
	FLast RecordFlag = 1 << 7

	// FTob marks a top-of-book record.
	FTob RecordFlag = 1 << 6

	// FSnapshot marks a record replayed from a snapshot.
	FSnapshot RecordFlag = 1 << 5

	// FMbp marks aggregated price-level (market by price) data.
	FMbp RecordFlag = 1 << 4
)

// Matches reports whether flags has f set.
func (f RecordFlag) Matches(flags uint8) bool {
	return flags&uint8(f) != 0
}
