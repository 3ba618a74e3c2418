// Package mailbox fetches raw emails from the user's mail provider.
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/anthonydavila469-creator/billdock/internal/common"
	"github.com/anthonydavila469-creator/billdock/internal/model"
)

// searchQuery narrows the fetch to likely-relevant inbox mail. Chats and
// drafts never contain bills.
const searchQuery = "in:inbox -in:chat after:%d"

// maxMessages bounds one sync's fetch.
const maxMessages = 200

// GmailFetcher implements service.MailboxFetcher against the Gmail API.
type GmailFetcher struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewGmailFetcher builds a fetcher from an OAuth token source. The caller
// owns token acquisition and refresh.
func NewGmailFetcher(ctx context.Context, tokenSource oauth2.TokenSource, logger *slog.Logger) (*GmailFetcher, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GmailFetcher{service: svc, logger: logger}, nil
}

// FetchEmails returns the user's inbox messages received since the given
// time, deduplicated by message id. Gmail authenticates the user via the
// token source; userID only labels the results.
func (f *GmailFetcher) FetchEmails(ctx context.Context, userID string, since time.Time) ([]model.RawEmail, error) {
	query := fmt.Sprintf(searchQuery, since.Unix())

	var ids []string
	seen := make(map[string]bool)
	pageToken := ""
	for {
		call := f.service.Users.Messages.List("me").Q(query).MaxResults(100).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMailboxConnection, err)
		}
		for _, msg := range resp.Messages {
			if seen[msg.Id] {
				continue
			}
			seen[msg.Id] = true
			ids = append(ids, msg.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" || len(ids) >= maxMessages {
			break
		}
	}
	if len(ids) > maxMessages {
		ids = ids[:maxMessages]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	emails := make([]model.RawEmail, 0, len(ids))
	for _, id := range ids {
		msg, err := f.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			f.logger.Warn("failed to fetch message, skipping it",
				"message_id", id,
				"error", err)
			continue
		}

		emails = append(emails, parseMessage(msg))
	}

	f.logger.Info("fetched emails",
		"user_id", userID,
		"since", since.Format("2006-01-02"),
		"count", len(emails))

	return emails, nil
}

// parseMessage flattens one Gmail message into the pipeline's input shape.
func parseMessage(msg *gmail.Message) model.RawEmail {
	email := model.RawEmail{
		ID:   msg.Id,
		Date: time.UnixMilli(msg.InternalDate),
	}

	if msg.Payload == nil {
		return email
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			email.From = header.Value
		case "subject":
			email.Subject = header.Value
		}
	}

	plain, html := collectBodies(msg.Payload)
	email.BodyPlain = plain
	email.BodyHTML = html

	return email
}

// collectBodies walks the MIME tree for the first text/plain and text/html
// bodies. Multipart alternatives nest arbitrarily deep.
func collectBodies(part *gmail.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}

	mediaType := part.MimeType
	if parsed, _, err := mime.ParseMediaType(part.MimeType); err == nil {
		mediaType = parsed
	}

	if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		}
		if err == nil {
			switch mediaType {
			case "text/plain":
				return string(decoded), ""
			case "text/html":
				return "", string(decoded)
			}
		}
	}

	for _, child := range part.Parts {
		childPlain, childHTML := collectBodies(child)
		if plain == "" {
			plain = childPlain
		}
		if html == "" {
			html = childHTML
		}
		if plain != "" && html != "" {
			break
		}
	}
	return plain, html
}
