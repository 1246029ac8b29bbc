package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("/purchase 50 20 Coop Ait Baha")
	require.Equal(t, CommandPurchase, cmd.Type)
	require.Equal(t, []string{"50", "20", "Coop", "Ait", "Baha"}, cmd.Args)

	cmd = ParseCommand("  VENTE F-001 2 150 Argan Oil ")
	require.Equal(t, CommandSale, cmd.Type)
	require.Equal(t, "F-001", cmd.Args[0])

	cmd = ParseCommand("/summary")
	require.Equal(t, CommandSummary, cmd.Type)
	require.Empty(t, cmd.Args)

	require.Equal(t, CommandUnknown, ParseCommand("").Type)
	require.Equal(t, CommandUnknown, ParseCommand("/eggs 12").Type)
}

func TestInboundMessageBody(t *testing.T) {
	require.Equal(t, "/stock", InboundMessage{Text: &TextContent{Body: "/stock"}}.Body())
	require.Equal(t, "/alerts", InboundMessage{Interactive: &InteractiveContent{ButtonReply: &ReplyItem{ID: "/alerts"}}}.Body())
	require.Equal(t, "", InboundMessage{Type: "image"}.Body())
}
