package discord

import (
	"encoding/json"
	"strings"
)

// Gateway opcodes used by the connector.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

const (
	eventReady         = "READY"
	eventMessageCreate = "MESSAGE_CREATE"
)

const maxMessageLength = 2000

// splitReply cuts content into messages Discord accepts, breaking between
// lines where possible. A single line longer than the limit is hard cut.
func splitReply(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
	}
	for _, line := range strings.Split(content, "\n") {
		for len(line) > maxMessageLength {
			flush()
			chunks = append(chunks, line[:maxMessageLength])
			line = line[maxMessageLength:]
		}
		if current.Len() > 0 && current.Len()+1+len(line) > maxMessageLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}

// displayName prefers the guild nickname, then the global display name, then
// the account name.
func displayName(author messageAuthor, member *guildMember) string {
	if member != nil && strings.TrimSpace(member.Nick) != "" {
		return strings.TrimSpace(member.Nick)
	}
	if strings.TrimSpace(author.GlobalName) != "" {
		return strings.TrimSpace(author.GlobalName)
	}
	if strings.TrimSpace(author.Username) != "" {
		return strings.TrimSpace(author.Username)
	}
	return author.ID
}

type gatewayFrame struct {
	Op       int             `json:"op"`
	Event    string          `json:"t"`
	Sequence *int64          `json:"s"`
	Data     json.RawMessage `json:"d"`
}

type helloData struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID string        `json:"session_id"`
	User      messageAuthor `json:"user"`
}

type messageCreate struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	GuildID   string        `json:"guild_id"`
	Content   string        `json:"content"`
	Author    messageAuthor `json:"author"`
	Member    *guildMember  `json:"member"`
}

type messageAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

type guildMember struct {
	Nick string `json:"nick"`
}
