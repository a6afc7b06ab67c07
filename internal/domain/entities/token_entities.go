package entities

import "strings"

// SupportedToken is a whitelisted (chain, token contract) pair. Tokens that are
// not listed here are never scanned.
type SupportedToken struct {
	ChainID  string `json:"chain_id" db:"chain_id"`
	Symbol   string `json:"symbol" db:"symbol"`
	Address  string `json:"address" db:"address"`
	Name     string `json:"name" db:"name"`
	Decimals int32  `json:"decimals" db:"decimals"`
	IconURL  string `json:"icon" db:"icon_url"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Key identifies the token within its chain
func (t *SupportedToken) Key() string {
	return t.ChainID + ":" + strings.ToLower(t.Address)
}
