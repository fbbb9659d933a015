package mailsource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"inteliroute/internal/config"
	"inteliroute/internal/model"
)

// GmailSource implements Source on top of the Gmail history API. The cursor
// is the decimal history id reported by the provider.
type GmailSource struct {
	cfg config.GmailConfig
}

func NewGmailSource(cfg config.GmailConfig) *GmailSource {
	return &GmailSource{cfg: cfg}
}

// serviceFor builds a Gmail service for one mailbox. A mailbox may name an
// environment variable holding its own refresh token via CredentialRef;
// otherwise the configured default token is used. The secret itself is never
// stored on the mailbox row.
func (s *GmailSource) serviceFor(ctx context.Context, mb model.Mailbox) (*gmail.Service, error) {
	refreshToken := s.cfg.RefreshToken
	if mb.CredentialRef != "" {
		if tok := os.Getenv(mb.CredentialRef); tok != "" {
			refreshToken = tok
		}
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}

// BaselineCursor returns the account's current history id.
func (s *GmailSource) BaselineCursor(ctx context.Context, mb model.Mailbox) (string, error) {
	service, err := s.serviceFor(ctx, mb)
	if err != nil {
		return "", err
	}

	profile, err := service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get Gmail profile for %s: %w", mb.Address, err)
	}
	return strconv.FormatUint(profile.HistoryId, 10), nil
}

// ListSince pulls history records added after the cursor, page by page, and
// returns the normalized messages plus the highest history id observed.
func (s *GmailSource) ListSince(ctx context.Context, mb model.Mailbox, cursor string) ([]InboundMessage, string, error) {
	startHistoryID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		// An unparseable cursor is unrecoverable the same way an expired one
		// is: the only way forward is a fresh baseline.
		return nil, "", fmt.Errorf("%w: bad cursor %q", ErrCursorExpired, cursor)
	}

	service, err := s.serviceFor(ctx, mb)
	if err != nil {
		return nil, "", err
	}

	var (
		inbound      []InboundMessage
		pageToken    string
		maxHistoryID = startHistoryID
	)

	for {
		call := service.Users.History.List("me").
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		history, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == 404 {
				return nil, "", ErrCursorExpired
			}
			return nil, "", fmt.Errorf("failed to list Gmail history for %s: %w", mb.Address, err)
		}

		for _, record := range history.History {
			for _, added := range record.MessagesAdded {
				msg, err := service.Users.Messages.Get("me", added.Message.Id).
					Format("full").Context(ctx).Do()
				if err != nil {
					return nil, "", fmt.Errorf("failed to get Gmail message %s: %w", added.Message.Id, err)
				}
				inbound = append(inbound, normalizeGmailMessage(msg))
			}
		}

		if history.HistoryId > maxHistoryID {
			maxHistoryID = history.HistoryId
		}

		pageToken = history.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return inbound, strconv.FormatUint(maxHistoryID, 10), nil
}

func normalizeGmailMessage(msg *gmail.Message) InboundMessage {
	m := InboundMessage{
		ExternalID: msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		ReceivedAt: time.Now().UTC(),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				m.From = h.Value
			case "To":
				m.To = h.Value
			case "Subject":
				m.Subject = h.Value
			case "Date":
				if t, err := time.Parse(time.RFC1123Z, h.Value); err == nil {
					m.ReceivedAt = t.UTC()
				} else if t, err := time.Parse(time.RFC1123, h.Value); err == nil {
					m.ReceivedAt = t.UTC()
				}
			}
		}
		m.BodyText = extractPlainText(msg.Payload)
	} else {
		m.BodyText = BodyUnreadable
	}

	return m
}

// extractPlainText walks the MIME tree preferring text/plain, then text/html
// (marked), then the raw payload body.
func extractPlainText(payload *gmail.MessagePart) string {
	if plain := findPartByMimeType(payload, "text/plain"); plain != nil && plain.Body != nil && plain.Body.Data != "" {
		if text, err := decodeBase64URL(plain.Body.Data); err == nil {
			return text
		}
		return BodyDecodeError
	}

	if html := findPartByMimeType(payload, "text/html"); html != nil && html.Body != nil && html.Body.Data != "" {
		if text, err := decodeBase64URL(html.Body.Data); err == nil {
			return "[HTML]\n" + text
		}
		return BodyDecodeError
	}

	if payload.Body != nil && payload.Body.Data != "" {
		if text, err := decodeBase64URL(payload.Body.Data); err == nil {
			return text
		}
		return BodyDecodeError
	}

	return BodyUnreadable
}

func findPartByMimeType(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	if part.MimeType == mimeType {
		return part
	}
	for _, p := range part.Parts {
		if found := findPartByMimeType(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		// Some payloads arrive padded.
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}
