package view

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/quickpoll/quickpoll-go/internal/core/domain"
)

const barWidth = 30

// Feed writes one line per poll summary.
func Feed(w io.Writer, page *domain.PollPage) {
	if len(page.Polls) == 0 {
		fmt.Fprintln(w, "no polls found")
		return
	}
	for _, p := range page.Polls {
		status := " "
		if !p.IsActive {
			status = "x"
		}
		fmt.Fprintf(w, "[%s] %-38s  %4d votes  %4d likes  %s\n",
			status, truncate(p.Title, 38), p.TotalVotes, p.TotalLikes, p.PollID)
	}
	pg := page.Pagination
	if pg.TotalPages > 1 {
		fmt.Fprintf(w, "page %d/%d (%d polls)\n", pg.Page, pg.TotalPages, pg.Total)
	}
}

// Poll writes the detail view with a proportional bar per option.
func Poll(w io.Writer, p *domain.Poll) {
	fmt.Fprintf(w, "%s\n", p.Title)
	if p.Description != "" {
		fmt.Fprintf(w, "%s\n", p.Description)
	}
	fmt.Fprintf(w, "%d votes, %d likes", p.TotalVotes, p.TotalLikes)
	if p.SessionLiked {
		fmt.Fprint(w, "  (liked)")
	}
	fmt.Fprintln(w)

	opts := make([]domain.Option, len(p.Options))
	copy(opts, p.Options)
	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].DisplayOrder < opts[j].DisplayOrder
	})

	for _, opt := range opts {
		marker := " "
		if p.SessionVote != nil && p.SessionVote.OptionID == opt.OptionID {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %-30s %s %d\n",
			marker, truncate(opt.OptionText, 30), bar(opt.VoteCount, p.TotalVotes), opt.VoteCount)
	}
}

// Votes writes the session's voting history.
func Votes(w io.Writer, votes []domain.Vote) {
	if len(votes) == 0 {
		fmt.Fprintln(w, "no votes yet")
		return
	}
	for _, v := range votes {
		fmt.Fprintf(w, "%s  poll %s  option %s\n",
			v.VotedAt.Format("2006-01-02 15:04"), v.PollID, v.OptionID)
	}
}

func bar(count, total int) string {
	if total <= 0 {
		return strings.Repeat(".", barWidth)
	}
	filled := count * barWidth / total
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
