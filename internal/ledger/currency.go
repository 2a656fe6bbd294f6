package ledger

import (
	"errors"

	"github.com/cardex/market-api/internal/types"
	"gorm.io/gorm"
)

// CurrencyAccount holds a principal's trade-currency balance in smallest
// units.
type CurrencyAccount struct {
	gorm.Model
	Principal string `gorm:"uniqueIndex" json:"principal"`
	Balance   int64  `json:"balance"`
}

// CurrencyAllowance is a spend authorization from an owner to a spender.
type CurrencyAllowance struct {
	gorm.Model
	Owner   string `gorm:"uniqueIndex:idx_owner_spender" json:"owner"`
	Spender string `gorm:"uniqueIndex:idx_owner_spender" json:"spender"`
	Amount  int64  `json:"amount"`
}

// ServiceCreditAccount holds the distinct currency that pays the flat
// per-operation service fee.
type ServiceCreditAccount struct {
	gorm.Model
	Principal string `gorm:"uniqueIndex" json:"principal"`
	Balance   int64  `json:"balance"`
}

// Currency is a gorm-backed fungible ledger with allowance-gated
// transfer-on-behalf. The market operator identity is fixed at
// construction: TransferFrom consumes the payer's allowance granted to
// that operator.
type Currency struct {
	db       *gorm.DB
	operator string
}

func NewCurrency(db *gorm.DB, operator string) *Currency {
	return &Currency{db: db, operator: operator}
}

// Deposit credits a principal's trade-currency balance
func (c *Currency) Deposit(principal string, amount int64) error {
	if amount <= 0 {
		return errors.New("deposit amount must be positive")
	}
	account, err := c.ensureAccount(c.db, principal)
	if err != nil {
		return err
	}
	account.Balance += amount
	return c.db.Save(account).Error
}

// SetAllowance authorizes the market operator to spend up to amount on the
// owner's behalf
func (c *Currency) SetAllowance(owner string, amount int64) error {
	if amount < 0 {
		return errors.New("allowance cannot be negative")
	}
	var allowance CurrencyAllowance
	err := c.db.Where("owner = ? AND spender = ?", owner, c.operator).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.db.Create(&CurrencyAllowance{
			Owner:   owner,
			Spender: c.operator,
			Amount:  amount,
		}).Error
	}
	if err != nil {
		return err
	}
	allowance.Amount = amount
	return c.db.Save(&allowance).Error
}

// BalanceOf returns a principal's trade-currency balance. A read never
// creates ledger rows; unknown principals simply hold zero.
func (c *Currency) BalanceOf(principal string) (int64, error) {
	account, err := c.account(c.db, principal)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

func (c *Currency) Allowance(owner, spender string) (int64, error) {
	var allowance CurrencyAllowance
	err := c.db.Where("owner = ? AND spender = ?", owner, spender).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return allowance.Amount, nil
}

// TransferFrom moves amount from payer to payee on behalf of the market
// operator, consuming the payer's allowance. Fails on allowance or balance
// shortfall without touching state; runs inside the caller's transaction.
func (c *Currency) TransferFrom(tx *gorm.DB, payer, payee string, amount int64) error {
	if amount < 0 {
		return errors.New("transfer amount cannot be negative")
	}
	if amount == 0 {
		return nil
	}

	var allowance CurrencyAllowance
	err := tx.Where("owner = ? AND spender = ?", payer, c.operator).First(&allowance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && allowance.Amount < amount) {
		return types.ErrInsufficientAllowance
	}
	if err != nil {
		return err
	}

	from, err := c.account(tx, payer)
	if err != nil {
		return err
	}
	if from == nil || from.Balance < amount {
		return types.ErrInsufficientBalance
	}

	to, err := c.ensureAccount(tx, payee)
	if err != nil {
		return err
	}

	allowance.Amount -= amount
	from.Balance -= amount
	to.Balance += amount

	if err := tx.Save(&allowance).Error; err != nil {
		return err
	}
	if err := tx.Save(from).Error; err != nil {
		return err
	}
	return tx.Save(to).Error
}

// DepositServiceCredits credits a principal's service-credit balance
func (c *Currency) DepositServiceCredits(principal string, amount int64) error {
	if amount <= 0 {
		return errors.New("deposit amount must be positive")
	}
	account, err := c.ensureServiceAccount(c.db, principal)
	if err != nil {
		return err
	}
	account.Balance += amount
	return c.db.Save(account).Error
}

// ServiceCreditBalance returns a principal's service-credit balance without
// creating ledger rows
func (c *Currency) ServiceCreditBalance(principal string) (int64, error) {
	account, err := c.serviceAccount(c.db, principal)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// DebitServiceFee charges the flat service fee in service credits, crediting
// the market operator's service account
func (c *Currency) DebitServiceFee(tx *gorm.DB, payer string, amount int64) error {
	if amount == 0 {
		return nil
	}
	from, err := c.serviceAccount(tx, payer)
	if err != nil {
		return err
	}
	if from == nil || from.Balance < amount {
		return types.ErrInsufficientBalance
	}
	to, err := c.ensureServiceAccount(tx, c.operator)
	if err != nil {
		return err
	}
	from.Balance -= amount
	to.Balance += amount
	if err := tx.Save(from).Error; err != nil {
		return err
	}
	return tx.Save(to).Error
}

// account looks up a trade-currency account, nil when the principal has
// never held a balance
func (c *Currency) account(db *gorm.DB, principal string) (*CurrencyAccount, error) {
	var account CurrencyAccount
	err := db.Where("principal = ?", principal).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ensureAccount creates the account row on first credit
func (c *Currency) ensureAccount(db *gorm.DB, principal string) (*CurrencyAccount, error) {
	account, err := c.account(db, principal)
	if err != nil || account != nil {
		return account, err
	}
	account = &CurrencyAccount{Principal: principal}
	if err := db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (c *Currency) serviceAccount(db *gorm.DB, principal string) (*ServiceCreditAccount, error) {
	var account ServiceCreditAccount
	err := db.Where("principal = ?", principal).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Currency) ensureServiceAccount(db *gorm.DB, principal string) (*ServiceCreditAccount, error) {
	account, err := c.serviceAccount(db, principal)
	if err != nil || account != nil {
		return account, err
	}
	account = &ServiceCreditAccount{Principal: principal}
	if err := db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}
