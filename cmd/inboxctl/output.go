package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/inboxsync/internal/inbox"
	"github.com/matheus3301/inboxsync/internal/timeline"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeConversations(w io.Writer, list []inbox.Conversation, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\t\tACTIVE\tPREVIEW")
	for _, c := range list {
		flags := ""
		if c.Unread {
			flags += "●"
		}
		if c.Starred {
			flags += "★"
		}
		active := "-"
		if !c.LastActivityAt.IsZero() {
			active = humanize.RelTime(c.LastActivityAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Participant.Name, flags, active, truncate(c.LastMessagePreview, 60))
	}
	return tw.Flush()
}

func writeTranscript(w io.Writer, items []timeline.Item) {
	for _, it := range items {
		if it.Separator {
			fmt.Fprintf(w, "── %s ──\n", it.Label)
			continue
		}
		writeMessage(w, it.Message)
	}
}

func writeMessage(w io.Writer, m inbox.Message) {
	status := ""
	if m.Status == inbox.StatusSending {
		status = " (sending)"
	}
	fmt.Fprintf(w, "[%s] %s: %s%s\n", m.DisplayTime, m.Sender.Name, m.Body, status)
	for _, a := range m.Attachments {
		size := ""
		if a.Size > 0 {
			size = " (" + humanize.Bytes(uint64(a.Size)) + ")"
		}
		fmt.Fprintf(w, "    📎 %s%s\n", a.Name, size)
	}
	if len(m.Reactions) > 0 {
		emojis := make([]string, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			emojis = append(emojis, r.Emoji)
		}
		fmt.Fprintf(w, "    %s\n", strings.Join(emojis, " "))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
