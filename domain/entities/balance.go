package entities

// PairBalance is the signed net position between one user and a single
// counterparty. Positive means the counterparty owes the user; negative
// means the user owes the counterparty.
type PairBalance struct {
	UserID         int64
	CounterpartyID int64
	Amount         int64
}

// UserBalance aggregates one user's position across all counterparties.
// TotalOwing is money owed to the user, TotalOwed money the user owes;
// both are non-negative. Net = TotalOwing - TotalOwed.
type UserBalance struct {
	UserID     int64
	Pairwise   []PairBalance
	TotalOwing int64
	TotalOwed  int64
	Net        int64
}

// Transfer is a suggested payment produced by debt minimization. It is a
// suggestion only; creating a settlement from it is the caller's decision.
type Transfer struct {
	FromUserID int64
	ToUserID   int64
	Amount     int64
}

// SplitLine is the minimal projection of a split used by the balance
// engine: who paid, who owes, how much, and whether the split still counts.
type SplitLine struct {
	ExpenseID     int64
	PayerID       int64
	ParticipantID int64
	Amount        int64
	Status        SplitStatus
}

// SettlementLine is the minimal projection of a settlement used by the
// balance engine. Settlements without a local recipient carry ToUserID 0
// and never affect pairwise balances.
type SettlementLine struct {
	SettlementID int64
	FromUserID   int64
	ToUserID     int64
	Amount       int64
	Status       SettlementStatus
}
