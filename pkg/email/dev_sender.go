package email

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DevSender writes each message to dir as a standalone HTML file that opens
// in a browser. The envelope is kept in a leading HTML comment.
type DevSender struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewDevSender returns a DevSender; dir is created on first send.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir, now: time.Now}
}

func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrFailedToSendEmail, d.dir, err)
	}

	sentAt := d.now().UTC()
	name := params.Tag
	if name == "" {
		name = params.Subject
	}
	path := filepath.Join(d.dir, sentAt.Format("20060102T150405.000000")+"_"+fileSlug(name)+".html")

	var b strings.Builder
	b.WriteString("<!--\n")
	fmt.Fprintf(&b, "Date: %s\n", sentAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "To: %s\n", params.SendTo)
	fmt.Fprintf(&b, "Subject: %s\n", strings.ReplaceAll(params.Subject, "--", "- -"))
	if params.Tag != "" {
		fmt.Fprintf(&b, "Tag: %s\n", params.Tag)
	}
	b.WriteString("-->\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(params.Subject))
	b.WriteString(params.BodyHTML)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrFailedToSendEmail, path, err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9\-_.]+`)

// fileSlug turns s into a short lower-case name safe for any filesystem.
func fileSlug(s string) string {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	s = unsafeFileChars.ReplaceAllString(s, "")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		return "email"
	}
	return s
}
