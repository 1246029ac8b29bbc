package models

import "strings"

// CommandType enumerates supported chat command categories.
type CommandType string

const (
	CommandPurchase   CommandType = "purchase"
	CommandProduction CommandType = "production"
	CommandSale       CommandType = "sale"
	CommandSummary    CommandType = "summary"
	CommandStock      CommandType = "stock"
	CommandAlerts     CommandType = "alerts"
	CommandUnknown    CommandType = "unknown"
)

// French heads used by the cooperative's members.
var commandAliases = map[string]CommandType{
	"achat":      CommandPurchase,
	"vente":      CommandSale,
	"bilan":      CommandSummary,
	"alertes":    CommandAlerts,
	"production": CommandProduction,
}

// Command represents a parsed instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
// Arguments keep their original case so supplier and client names survive.
func ParseCommand(message string) Command {
	trimmed := strings.TrimSpace(message)
	cmd := Command{Type: CommandUnknown, Raw: message}

	tokens := strings.Fields(trimmed)
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch CommandType(head) {
	case CommandPurchase, CommandProduction, CommandSale, CommandSummary, CommandStock, CommandAlerts:
		cmd.Type = CommandType(head)
	default:
		if alias, ok := commandAliases[head]; ok {
			cmd.Type = alias
		}
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
