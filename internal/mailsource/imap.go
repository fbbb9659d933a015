package mailsource

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"

	"inteliroute/internal/config"
	"inteliroute/internal/model"
)

// IMAPSource implements Source for providers without a history API. The
// cursor is "UIDVALIDITY:lastUID"; UIDs grow monotonically within one
// UIDVALIDITY generation, and a generation change invalidates the cursor.
type IMAPSource struct {
	cfg config.IMAPConfig
}

func NewIMAPSource(cfg config.IMAPConfig) *IMAPSource {
	return &IMAPSource{cfg: cfg}
}

// connect dials, logs in and selects the configured folder read-only.
// One connection per call keeps the source stateless across mailboxes.
func (s *IMAPSource) connect() (*client.Client, *imap.MailboxStatus, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	status, err := c.Select(s.cfg.Folder, true)
	if err != nil {
		c.Logout()
		return nil, nil, fmt.Errorf("failed to select folder %s: %w", s.cfg.Folder, err)
	}

	return c, status, nil
}

// BaselineCursor records the current UIDVALIDITY and highest assigned UID.
func (s *IMAPSource) BaselineCursor(ctx context.Context, mb model.Mailbox) (string, error) {
	c, status, err := s.connect()
	if err != nil {
		return "", err
	}
	defer c.Logout()

	return fmt.Sprintf("%d:%d", status.UidValidity, status.UidNext-1), nil
}

// ListSince fetches messages with UIDs above the cursor. A UIDVALIDITY
// mismatch means the server renumbered the folder and the cursor is dead.
func (s *IMAPSource) ListSince(ctx context.Context, mb model.Mailbox, cursor string) ([]InboundMessage, string, error) {
	var validity, lastUID uint32
	if _, err := fmt.Sscanf(cursor, "%d:%d", &validity, &lastUID); err != nil {
		return nil, "", fmt.Errorf("%w: bad cursor %q", ErrCursorExpired, cursor)
	}

	c, status, err := s.connect()
	if err != nil {
		return nil, "", err
	}
	defer c.Logout()

	if status.UidValidity != validity {
		return nil, "", ErrCursorExpired
	}

	criteria := imap.NewSearchCriteria()
	rng := new(imap.SeqSet)
	rng.AddRange(lastUID+1, 0) // 0 means "*"
	criteria.Uid = rng

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, "", fmt.Errorf("failed to search messages: %w", err)
	}

	// An n:* range matches the last message even when no new mail arrived.
	fresh := uids[:0]
	for _, uid := range uids {
		if uid > lastUID {
			fresh = append(fresh, uid)
		}
	}

	maxUID := lastUID
	if len(fresh) == 0 {
		return nil, fmt.Sprintf("%d:%d", validity, maxUID), nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(fresh...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(fresh))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var inbound []InboundMessage
	for msg := range messages {
		inbound = append(inbound, normalizeIMAPMessage(msg, section))
		if msg.Uid > maxUID {
			maxUID = msg.Uid
		}
	}

	if err := <-done; err != nil {
		return nil, "", fmt.Errorf("failed to fetch messages: %w", err)
	}

	return inbound, fmt.Sprintf("%d:%d", validity, maxUID), nil
}

func normalizeIMAPMessage(msg *imap.Message, section *imap.BodySectionName) InboundMessage {
	m := InboundMessage{
		ExternalID: fmt.Sprintf("%d", msg.Uid),
		BodyText:   BodyUnreadable,
	}

	if env := msg.Envelope; env != nil {
		m.Subject = env.Subject
		m.ReceivedAt = env.Date.UTC()
		m.ExternalID = env.MessageId
		if m.ExternalID == "" {
			m.ExternalID = fmt.Sprintf("%d", msg.Uid)
		}
		if len(env.From) > 0 {
			m.From = env.From[0].Address()
		}
		var tos []string
		for _, addr := range env.To {
			tos = append(tos, addr.Address())
		}
		m.To = strings.Join(tos, ", ")
	}

	if r := msg.GetBody(section); r != nil {
		if body, ok := extractIMAPText(r); ok {
			m.BodyText = body
		} else {
			m.BodyText = BodyDecodeError
		}
	}

	if m.Snippet == "" {
		m.Snippet = snippetOf(m.BodyText)
	}

	return m
}

// extractIMAPText walks the MIME entity preferring text/plain over text/html.
func extractIMAPText(r io.Reader) (string, bool) {
	entity, err := message.Read(r)
	if err != nil {
		return "", false
	}

	var plain, html string

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", false
			}
			content, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			contentType := p.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") && plain == "" {
				plain = string(content)
			} else if strings.Contains(contentType, "text/html") && html == "" {
				html = string(content)
			}
		}
	} else {
		content, err := io.ReadAll(entity.Body)
		if err != nil {
			return "", false
		}
		contentType := entity.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/html") {
			html = string(content)
		} else {
			plain = string(content)
		}
	}

	if plain != "" {
		return plain, true
	}
	if html != "" {
		return "[HTML]\n" + html, true
	}
	return BodyUnreadable, true
}

func snippetOf(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200]
	}
	return body
}
