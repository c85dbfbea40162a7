package market

import "math"

// CreditAccount is the number of carbon credits an identity owns.
type CreditAccount struct {
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

// Credit adds amount to the balance.
func (a *CreditAccount) Credit(amount uint64) error {
	if amount > math.MaxUint64-a.Balance {
		return errorf(ErrInvalidArgument, "crediting %d overflows the balance of %s", amount, a.Owner)
	}
	a.Balance += amount
	return nil
}

// Debit removes amount from the balance. The balance never goes negative.
func (a *CreditAccount) Debit(amount uint64) error {
	if amount > a.Balance {
		return errorf(ErrInsufficientCredits, "%s holds %d credits, %d required",
			a.Owner, a.Balance, amount)
	}
	a.Balance -= amount
	return nil
}

// ProceedsAccount accrues the informational price of credits an identity
// has sold. There is no currency ledger behind it.
type ProceedsAccount struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// Accrue adds amount to the proceeds.
func (p *ProceedsAccount) Accrue(amount uint64) error {
	if amount > math.MaxUint64-p.Amount {
		return errorf(ErrInvalidArgument, "proceeds of %s overflow", p.Owner)
	}
	p.Amount += amount
	return nil
}

// loadCreditAccount returns the account of owner, zero when it was never
// written.
func loadCreditAccount(ctx Context, owner string) (*CreditAccount, error) {
	acct := &CreditAccount{Owner: owner}
	if _, err := getRecord(ctx, creditsKey(owner), acct); err != nil {
		return nil, err
	}
	acct.Owner = owner
	return acct, nil
}

func saveCreditAccount(ctx Context, acct *CreditAccount) error {
	return putRecord(ctx, creditsKey(acct.Owner), acct)
}

// creditAccount loads the account of owner, credits amount and writes it
// back.
func creditAccount(ctx Context, owner string, amount uint64) (*CreditAccount, error) {
	acct, err := loadCreditAccount(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := acct.Credit(amount); err != nil {
		return nil, err
	}
	return acct, saveCreditAccount(ctx, acct)
}

func loadProceedsAccount(ctx Context, owner string) (*ProceedsAccount, error) {
	acct := &ProceedsAccount{Owner: owner}
	if _, err := getRecord(ctx, proceedsKey(owner), acct); err != nil {
		return nil, err
	}
	acct.Owner = owner
	return acct, nil
}

func saveProceedsAccount(ctx Context, acct *ProceedsAccount) error {
	return putRecord(ctx, proceedsKey(acct.Owner), acct)
}
