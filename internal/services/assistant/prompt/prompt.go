// Package prompt renders the instructions sent to the assistant model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vmitra/vmitra/internal/platform/i18n"
	"github.com/vmitra/vmitra/internal/services/business/money"
)

const (
	// DefaultOwner is how the persona addresses the shopkeeper.
	DefaultOwner = "Shivam ji"
	// UnknownLocation is used when a session names no location.
	UnknownLocation = "Unknown"
)

const persona = `You are V-Mitra, the elite "AI Business OS" built for India's high-performance merchants.
Your primary objective is to manage the shop's 'Bahi-Khata' with 100%% precision.

VOICE PERSONA:
- Speak in %s%s.
- Tone: Professional, Efficient, and Respectful.
- Address the user as "Sir" or "%s".
- Focus on business metrics: "Bikri", "Nafa", "Stock", "Khaata".

CORE FUNCTIONS:
- RECORD SALES: When a user mentions selling items, identify products and quantities immediately.
- PROFIT MONITORING: Keep track of "Nafa" (Profit) based on cost price vs selling price.
- STOCK ALERTS: Proactively warn about low stock to prevent business loss.
- COMPLIANCE: Inform about tax deadlines like GST.

You are not a chatbot; you are a Business Partner. Keep responses brief, actionable, and data-driven.
Location: %s.`

const summaryInstruction = "Act as V-Mitra. In one power-packed Hinglish sentence, provide a professional update on today's profit and one urgent business action. No technical jargon."

// SystemInstruction renders the persona for language at location.
func SystemInstruction(language i18n.Language, location, owner string) string {
	if language == "" {
		language = i18n.DefaultLanguage
	}
	hint := ""
	if language == i18n.Hinglish {
		hint = " (Use natural Hinglish)"
	}
	location = strings.TrimSpace(location)
	if location == "" {
		location = UnknownLocation
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = DefaultOwner
	}
	return fmt.Sprintf(persona, language, hint, owner, location)
}

// Summary renders the dashboard summary request for today's figures.
func Summary(sales, profit money.Money, alerts []string) string {
	return fmt.Sprintf("%s Stats: Sales %s, Profit %s, Alerts: %s", summaryInstruction, sales, profit, strings.Join(alerts, ", "))
}
