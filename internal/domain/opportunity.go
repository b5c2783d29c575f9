package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Opportunity is a cross-source divergence that met the alert threshold.
// DivergencePercent keeps its sign: positive means the primary source
// quoted higher than the secondary.
type Opportunity struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	PrimarySource     string          `json:"primary_source"`
	SecondarySource   string          `json:"secondary_source"`
	PrimaryValue      decimal.Decimal `json:"primary_value"`
	SecondaryValue    decimal.Decimal `json:"secondary_value"`
	DivergencePercent decimal.Decimal `json:"divergence_percent"`
	DetectedAt        time.Time       `json:"detected_at"`
}

// Direction renders which side quoted higher, e.g. "MEXC > DexScreener".
func (o Opportunity) Direction() string {
	if o.DivergencePercent.IsNegative() {
		return fmt.Sprintf("%s > %s", o.SecondarySource, o.PrimarySource)
	}
	return fmt.Sprintf("%s > %s", o.PrimarySource, o.SecondarySource)
}
