package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-backend/internal/domain/cart"
	"github.com/your-org/marketplace-backend/internal/domain/payment"
)

// Provider limits on line item text
const (
	maxNameRunes        = 255
	maxDescriptionRunes = 500
)

var hundred = decimal.NewFromInt(100)

// toMinorUnits converts a decimal price to integer cents
func toMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// truncateRunes cuts s to at most n characters without splitting a rune
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// providerImage returns raw only if it is an absolute https URL
func providerImage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// sessionLineItem builds the provider line for a resolved cart line
func sessionLineItem(line cart.Line) payment.SessionLineItem {
	name := strings.TrimSpace(line.Title)
	if name == "" {
		name = line.ItemType
	}
	return payment.SessionLineItem{
		Name:        truncateRunes(name, maxNameRunes),
		Description: truncateRunes(strings.TrimSpace(line.Summary), maxDescriptionRunes),
		ImageURL:    providerImage(line.ImageURL),
		UnitAmount:  toMinorUnits(line.UnitPrice),
		Quantity:    int64(line.Quantity),
	}
}

// recordLineItem builds the persisted snapshot for a resolved cart line
func recordLineItem(line cart.Line, position int) payment.LineItem {
	return payment.LineItem{
		ItemKind:   line.Kind,
		ItemID:     line.ItemID,
		Title:      truncateRunes(line.Title, maxNameRunes),
		UnitPrice:  line.UnitPrice,
		UnitAmount: toMinorUnits(line.UnitPrice),
		Quantity:   line.Quantity,
		LineTotal:  line.LineTotal,
		Position:   position,
	}
}

// cartDigest fingerprints the entry set that was priced
func cartDigest(lines []cart.Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%s:%d", line.ID, line.Quantity))
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
