package models

// Customer holds spendable and held (frozen) card balances.
type Customer struct {
	ID                string  `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	BalanceCard       float64 `db:"balance_card" json:"balance_card"`
	FrozenBalanceCard float64 `db:"frozen_balance_card" json:"frozen_balance_card"`
	TelegramChatID    *int64  `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	NotifyOptIn       bool    `db:"notify_opt_in" json:"notify_opt_in"`
	Timezone          string  `db:"timezone" json:"timezone"`
}

// Total is the conserved sum of spendable and frozen balance.
func (c *Customer) Total() float64 {
	return c.BalanceCard + c.FrozenBalanceCard
}

// LedgerEntry is a balance movement intent for one customer.
type LedgerEntry struct {
	CustomerID   string  `db:"customer_id" json:"customer_id"`
	BalanceDelta float64 `db:"balance_delta" json:"balance_delta"`
	FrozenDelta  float64 `db:"frozen_delta" json:"frozen_delta"`
}

// Ledger accumulates intents per customer so a batch is applied once.
type Ledger struct {
	order   []string
	entries map[string]*LedgerEntry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: map[string]*LedgerEntry{}}
}

// Add records a movement for customerID.
func (l *Ledger) Add(customerID string, balanceDelta, frozenDelta float64) {
	if balanceDelta == 0 && frozenDelta == 0 {
		return
	}
	entry, ok := l.entries[customerID]
	if !ok {
		entry = &LedgerEntry{CustomerID: customerID}
		l.entries[customerID] = entry
		l.order = append(l.order, customerID)
	}
	entry.BalanceDelta += balanceDelta
	entry.FrozenDelta += frozenDelta
}

// Entries returns the summed intents in first-seen order, skipping customers
// whose movements cancelled out.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(l.order))
	for _, id := range l.order {
		entry := l.entries[id]
		if entry.BalanceDelta == 0 && entry.FrozenDelta == 0 {
			continue
		}
		out = append(out, *entry)
	}
	return out
}
