package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/support-chat/internal/domain"
)

// ThreadGroup is one inbox row: all tickets for a single client partition,
// newest activity first, with the partition's active ticket surfaced.
type ThreadGroup struct {
	ClientEmail  string
	ClientName   string
	BusinessName string
	IsLead       bool
	LeadLabel    string
	Tickets      []domain.Ticket
	Active       *domain.Ticket
	UnreadTotal  int
}

// GroupThreads partitions tickets by client email and orders groups by their
// most recent activity.
func GroupThreads(tickets []domain.Ticket) []ThreadGroup {
	byEmail := make(map[string][]domain.Ticket)
	for _, t := range tickets {
		email := strings.ToLower(t.ClientEmail)
		byEmail[email] = append(byEmail[email], t)
	}

	groups := make([]ThreadGroup, 0, len(byEmail))
	for email, group := range byEmail {
		domain.SortTicketsByActivity(group)
		g := ThreadGroup{
			ClientEmail: email,
			Tickets:     group,
			Active:      ActiveTicket(group),
		}
		for i := range group {
			g.UnreadTotal += group[i].UnreadByAdmin
		}
		// Descriptive fields from the freshest ticket carrying them.
		for i := range group {
			if g.ClientName == "" {
				g.ClientName = group[i].ClientName
			}
			if g.BusinessName == "" {
				g.BusinessName = group[i].BusinessName
			}
			if group[i].IsLead {
				g.IsLead = true
				if g.LeadLabel == "" {
					g.LeadLabel = group[i].LeadLabel
				}
			}
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Tickets[0].UpdatedAt.After(groups[j].Tickets[0].UpdatedAt)
	})
	return groups
}

// ActiveTicket picks the first non-resolved ticket in most-recently-updated
// order, falling back to the most recent ticket when everything is resolved.
// Returns nil for an empty slice. The input is not mutated.
func ActiveTicket(tickets []domain.Ticket) *domain.Ticket {
	if len(tickets) == 0 {
		return nil
	}
	ordered := make([]domain.Ticket, len(tickets))
	copy(ordered, tickets)
	domain.SortTicketsByActivity(ordered)
	for i := range ordered {
		if ordered[i].Status != domain.TicketStatusResolved {
			return &ordered[i]
		}
	}
	return &ordered[0]
}

// FormatSLACountdown renders the time remaining until an SLA deadline, or
// how far past it the ticket is. Returns "" when no deadline is set.
func FormatSLACountdown(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	remaining := due.Sub(now)
	if remaining < 0 {
		return fmt.Sprintf("overdue by %s", formatSpan(-remaining))
	}
	return fmt.Sprintf("%s left", formatSpan(remaining))
}

func formatSpan(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FilterTicketsByStatus keeps tickets in the given status; an empty status
// passes everything through.
func FilterTicketsByStatus(tickets []domain.Ticket, status domain.TicketStatus) []domain.Ticket {
	if status == "" {
		return tickets
	}
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// SearchThreads matches the query case-insensitively against client identity
// fields and message text.
func SearchThreads(tickets []domain.Ticket, query string) []domain.Ticket {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tickets
	}
	out := make([]domain.Ticket, 0)
	for _, t := range tickets {
		if ticketMatches(&t, q) {
			out = append(out, t)
		}
	}
	return out
}

func ticketMatches(t *domain.Ticket, q string) bool {
	for _, field := range []string{t.ClientEmail, t.ClientName, t.BusinessName, t.LeadLabel, t.LeadFullName, t.LeadContactEmail} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for i := range t.Messages {
		if strings.Contains(strings.ToLower(t.Messages[i].Text), q) {
			return true
		}
	}
	return false
}
