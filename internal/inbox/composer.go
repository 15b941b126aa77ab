package inbox

import (
	"slices"
	"sync"
)

// Preview is a client-only resource attached to a draft, such as a locally
// recorded audio clip. It must be released once the draft is sent or dropped.
type Preview interface {
	Release()
}

// Draft is the content of the composer at one point in time.
type Draft struct {
	Text        string
	Attachments []Attachment
	Previews    []Preview
}

// Empty reports whether there is nothing to send.
func (d Draft) Empty() bool {
	return d.Text == "" && len(d.Attachments) == 0
}

// Composer holds the message being written.
type Composer struct {
	mu    sync.Mutex
	draft Draft
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Text = text
}

// Attach adds an attachment, optionally with a local preview resource.
func (c *Composer) Attach(a Attachment, p Preview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Attachments = append(c.draft.Attachments, a)
	if p != nil {
		c.draft.Previews = append(c.draft.Previews, p)
	}
}

// Draft returns a copy of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneDraft(c.draft)
}

// Take returns the current draft and leaves the composer empty.
func (c *Composer) Take() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	c.draft = Draft{}
	return d
}

// Restore puts text and attachments of d back into the composer. Preview
// handles are not restored.
func (c *Composer) Restore(d Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = Draft{
		Text:        d.Text,
		Attachments: slices.Clone(d.Attachments),
	}
}

func cloneDraft(d Draft) Draft {
	return Draft{
		Text:        d.Text,
		Attachments: slices.Clone(d.Attachments),
		Previews:    slices.Clone(d.Previews),
	}
}
