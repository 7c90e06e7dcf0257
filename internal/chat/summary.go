package chat

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/consertja/consertja/internal/models"
)

const attachmentPlaceholder = "Anexo"

// Summaries builds the chat list of the session user, newest conversation
// first. A non-empty query keeps the conversations whose counterpart name
// contains it, ignoring case.
func (s *Service) Summaries(ctx context.Context, self models.Session, query string) ([]models.ConversationSummary, error) {
	if !self.Authenticated() {
		return []models.ConversationSummary{}, nil
	}
	if !self.Role.Valid() {
		role, err := s.store.LookupRole(ctx, self.UserID)
		if err != nil {
			return nil, err
		}
		self.Role = role
	}

	messages, err := s.store.ListMessagesForUser(ctx, self.UserID, self.Role)
	if err != nil {
		return nil, err
	}

	counterpart := self.Role.Counterpart()
	ids := lo.Uniq(lo.Map(messages, func(m models.Message, _ int) string {
		return m.Key().Participant(counterpart)
	}))

	names, err := s.store.CounterpartNames(ctx, counterpart, ids)
	if err != nil {
		// Names are cosmetic; fall back to the defaults
		log.Warn("Failed to load counterpart names: %v", err)
		names = map[string]string{}
	}

	return FilterSummaries(Summarize(self, messages, names), query), nil
}

// Summarize groups the messages of the session user by counterpart
func Summarize(self models.Session, messages []models.Message, names map[string]string) []models.ConversationSummary {
	counterpart := self.Role.Counterpart()
	byCounterpart := lo.GroupBy(messages, func(m models.Message) string {
		return m.Key().Participant(counterpart)
	})

	summaries := make([]models.ConversationSummary, 0, len(byCounterpart))
	for id, thread := range byCounterpart {
		last := lo.MaxBy(thread, func(a, b models.Message) bool {
			return a.SentAt.After(b.SentAt)
		})

		text := last.Text
		if strings.TrimSpace(text) == "" {
			text = attachmentPlaceholder
		}

		name, ok := names[id]
		if !ok || name == "" {
			name = defaultName(counterpart)
		}

		summaries = append(summaries, models.ConversationSummary{
			CounterpartID:   id,
			CounterpartName: name,
			LastMessage:     text,
			LastAt:          last.SentAt,
			UnreadCount: lo.CountBy(thread, func(m models.Message) bool {
				return m.SentBy == counterpart && !m.Read
			}),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].LastAt.Equal(summaries[j].LastAt) {
			return summaries[i].CounterpartID < summaries[j].CounterpartID
		}
		return summaries[i].LastAt.After(summaries[j].LastAt)
	})
	return summaries
}

// FilterSummaries keeps the summaries whose name contains query
func FilterSummaries(summaries []models.ConversationSummary, query string) []models.ConversationSummary {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return summaries
	}
	return lo.Filter(summaries, func(s models.ConversationSummary, _ int) bool {
		return strings.Contains(strings.ToLower(s.CounterpartName), query)
	})
}

func defaultName(role models.Role) string {
	if role == models.RoleProvider {
		return "Prestador"
	}
	return "Cliente"
}
