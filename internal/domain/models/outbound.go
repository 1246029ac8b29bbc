package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}

// CommandHelp is the reply sent when a chat message cannot be understood.
const CommandHelp = "Supported commands:\n" +
	"/purchase <kg> <price> <supplier>\n" +
	"/production <fruit kg> <oil L> <responsible>\n" +
	"/sale <invoice> <qty> <unit price> <product> [to <client>]\n" +
	"/summary, /stock, /alerts"
