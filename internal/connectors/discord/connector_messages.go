package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dwizi/rescue-console/internal/dispatch"
)

// handleMessageCreate feeds each line of a message to the dispatcher in
// order. Lines from one message never interleave with another message.
func (c *Connector) handleMessageCreate(ctx context.Context, message messageCreate) {
	if message.Author.Bot || message.Author.ID == "" {
		return
	}
	if c.botUserID != "" && message.Author.ID == c.botUserID {
		return
	}
	channelID := strings.TrimSpace(message.ChannelID)
	if channelID == "" {
		return
	}
	target := directTargetPrefix + channelID
	if message.GuildID != "" {
		target = channelTargetPrefix + channelID
	}
	user := userFromAuthor(message.Author, message.Member)
	c.remember(user)

	for _, line := range strings.Split(message.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		outcome := c.dispatcher.HandleLine(ctx, c, user.Nickname, target, line)
		if outcome.Kind != dispatch.OutcomeIgnored {
			c.logger.Debug("discord line dispatched",
				"channel_id", channelID,
				"message_id", message.ID,
				"outcome", string(outcome.Kind),
				"name", outcome.Name,
			)
		}
	}
}

// userFromAuthor maps a Discord author onto a chat user. The stable user id
// stands in for a hostname so permission tables can name members exactly.
func userFromAuthor(author messageAuthor, member *guildMember) dispatch.User {
	return dispatch.User{
		Nickname:   displayName(author, member),
		Account:    strings.ToLower(strings.TrimSpace(author.Username)),
		Hostname:   "discord/" + author.ID,
		Realname:   author.GlobalName,
		Identified: true,
	}
}

// IsChannelName reports whether target addresses a guild channel.
func (c *Connector) IsChannelName(target string) bool {
	return strings.HasPrefix(target, channelTargetPrefix)
}

// Reply posts text to the channel behind target, split into as many
// messages as the length limit needs.
func (c *Connector) Reply(ctx context.Context, target, text string) error {
	channelID := strings.TrimPrefix(strings.TrimPrefix(target, channelTargetPrefix), directTargetPrefix)
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("discord reply target is required")
	}
	for _, chunk := range splitReply(text) {
		if err := c.postMessage(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) postMessage(ctx context.Context, channelID, content string) error {
	payload, err := json.Marshal(map[string]any{
		"content": content,
		"allowed_mentions": map[string]any{
			"parse": []string{"users"},
		},
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post discord message: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("post discord message: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
