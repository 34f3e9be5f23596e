// internal/domain/wallet_test.go
package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.True(t, ValidAddress("0xde709f2102306220921060314715629080e2fb77"))

	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("52908400098527886E0F7030069857D2E4169EE7"))
	assert.False(t, ValidAddress("0x5290840009852788"))                           // too short
	assert.False(t, ValidAddress("0xZZ908400098527886E0F7030069857D2E4169EE7"))   // non-hex
	assert.False(t, ValidAddress("0x52908400098527886E0F7030069857D2E4169EE711")) // too long
}

func TestGenerateAddress(t *testing.T) {
	a := GenerateAddress()
	b := GenerateAddress()

	assert.True(t, ValidAddress(a))
	assert.True(t, ValidAddress(b))
	assert.NotEqual(t, a, b)
}

func TestNewWalletRecord(t *testing.T) {
	rec := NewWalletRecord("owner-1", "0xde709f2102306220921060314715629080e2fb77",
		decimal.NewFromInt(5), decimal.NewFromInt(4000), decimal.NewFromInt(20000), "Sim Wallet")

	assert.Equal(t, "owner-1", rec.OwnerID)
	assert.True(t, rec.Active)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, rec.CreatedAt, rec.LastUpdated)
	assert.False(t, rec.CreatedAt.IsZero())
}
