package assistant

import (
	"fmt"
	"strings"
	"time"

	"stockpilot/backend/internal/dashboard"
	"stockpilot/backend/internal/domain"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

const topInventoryItems = 5

const greeting = "Hello! I've analyzed your latest sales, inventory, and expenses. " +
	"I'm ready to help you optimize your business. What would you like to know?"

const insightPrompt = "Give me a quick executive summary of my business health."

const instructionTemplate = `You are Stockpilot AI, a dedicated business assistant for this retail business.
Here is the real-time business data snapshot:
%s

Your instructions:
1. Answer questions based on this specific data.
2. If the user asks for advice, provide actionable steps.
3. You can use your general knowledge for market trends or business strategies.
4. Be professional, encouraging, and concise.
5. If you need to search the web for external info, assume you have general knowledge up to your training cutoff, but prioritize the provided internal data.`

// BuildContext renders the business snapshot the model is primed with.
func BuildContext(snap dashboard.Snapshot, now time.Time) string {
	totals := dashboard.Summarize(snap)

	low := dashboard.LowStock(snap.Products)
	lowNames := make([]string, 0, len(low))
	for _, p := range low {
		lowNames = append(lowNames, fmt.Sprintf("%s (%d)", p.Name, p.Stock))
	}
	lowLine := "None"
	if len(lowNames) > 0 {
		lowLine = strings.Join(lowNames, ", ")
	}

	top := dashboard.TopByInventoryValue(snap.Products, topInventoryItems)
	topNames := make([]string, 0, len(top))
	for _, p := range top {
		topNames = append(topNames, p.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", now.Format("Mon Jan 2 2006"))
	fmt.Fprintf(&b, "Total Revenue: %s\n", totals.Revenue.StringFixed(2))
	fmt.Fprintf(&b, "Total Expenses: %s\n", totals.Expenses.StringFixed(2))
	fmt.Fprintf(&b, "Net Profit: %s\n", totals.NetProfit.StringFixed(2))
	fmt.Fprintf(&b, "Total Sales Count: %d\n", totals.SalesCount)
	fmt.Fprintf(&b, "Inventory Count: %d\n", totals.ProductCount)
	fmt.Fprintf(&b, "Low Stock Items: %s\n", lowLine)
	fmt.Fprintf(&b, "Top Inventory Value: %s", strings.Join(topNames, ", "))
	return b.String()
}

// seedTurns opens a conversation: the hidden instruction turn and the greeting.
func seedTurns(contextText string, at time.Time) []domain.ChatTurn {
	return []domain.ChatTurn{
		{Role: RoleUser, Text: fmt.Sprintf(instructionTemplate, contextText), At: at},
		{Role: RoleModel, Text: greeting, At: at},
	}
}

// visible drops the instruction turn.
func visible(turns []domain.ChatTurn) []domain.ChatTurn {
	if len(turns) == 0 {
		return []domain.ChatTurn{}
	}
	out := make([]domain.ChatTurn, len(turns)-1)
	copy(out, turns[1:])
	return out
}
