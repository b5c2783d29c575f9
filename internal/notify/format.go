package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// FormatOpportunity renders opp as a notification title and body.
func FormatOpportunity(opp domain.Opportunity) (title, body string) {
	title = "Arbitrage opportunity: " + opp.Symbol

	var b strings.Builder
	fmt.Fprintf(&b, "Token: %s\n", opp.Symbol)
	fmt.Fprintf(&b, "%s Price: %s\n", opp.PrimarySource, opp.PrimaryValue.String())
	fmt.Fprintf(&b, "%s Price: %s\n", opp.SecondarySource, opp.SecondaryValue.String())
	fmt.Fprintf(&b, "Price Difference: %s%%\n", opp.DivergencePercent.Abs().StringFixed(2))
	fmt.Fprintf(&b, "Direction: %s\n", opp.Direction())
	fmt.Fprintf(&b, "Detected: %s", opp.DetectedAt.UTC().Format(time.RFC3339))
	return title, b.String()
}
