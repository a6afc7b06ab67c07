package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeposit(t *testing.T) {
	wallet := &ManagedWallet{ID: uuid.New(), UserID: uuid.New()}
	chain := &Chain{ID: "1", Name: "Ethereum", Family: ChainFamilyEVM}
	token := &SupportedToken{ChainID: "1", Symbol: "USDC", Address: "0xa0b8", Decimals: 6}
	now := time.Now()

	t.Run("increase produces deposit", func(t *testing.T) {
		d, err := NewDeposit(wallet, chain, token, decimal.Zero, decimal.NewFromInt(100), now)
		require.NoError(t, err)

		assert.True(t, d.Amount.Equal(decimal.NewFromInt(100)))
		assert.True(t, d.PreviousBalance.IsZero())
		assert.Equal(t, wallet.UserID, d.UserID)
		assert.Equal(t, "USDC", d.TokenSymbol)
		assert.False(t, d.WebhookSent)
		assert.NoError(t, d.Validate())
	})

	t.Run("no increase is rejected", func(t *testing.T) {
		_, err := NewDeposit(wallet, chain, token, decimal.NewFromInt(5), decimal.NewFromInt(5), now)
		assert.Error(t, err)

		_, err = NewDeposit(wallet, chain, token, decimal.NewFromInt(5), decimal.NewFromInt(1), now)
		assert.Error(t, err)
	})
}

func TestDeposit_Validate(t *testing.T) {
	d := &Deposit{
		Amount:          decimal.NewFromInt(3),
		PreviousBalance: decimal.NewFromInt(1),
		NewBalance:      decimal.NewFromInt(5),
	}
	assert.Error(t, d.Validate())

	d.Amount = decimal.Zero
	d.NewBalance = decimal.NewFromInt(1)
	assert.Error(t, d.Validate())
}

func TestParseChainFamily(t *testing.T) {
	f, err := ParseChainFamily(" evm ")
	require.NoError(t, err)
	assert.Equal(t, ChainFamilyEVM, f)

	_, err = ParseChainFamily("aptos")
	assert.Error(t, err)
}
