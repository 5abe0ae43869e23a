package collab

import (
	"strings"

	"collabhub/internal/domain"
)

// upsert replaces the entry with item's id or appends item.
func upsert[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, 0, len(items)+1)
	found := false
	for _, it := range items {
		if id(it) == id(item) {
			out = append(out, item)
			found = true
			continue
		}
		out = append(out, it)
	}
	if !found {
		out = append(out, item)
	}
	return out
}

// replace swaps the entry with item's id. Absent ids are not added.
func replace[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, len(items))
	for i, it := range items {
		if id(it) == id(item) {
			out[i] = item
			continue
		}
		out[i] = it
	}
	return out
}

func without[T any](items []T, key string, id func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if id(it) != key {
			out = append(out, it)
		}
	}
	return out
}

func hubKey(h domain.Hub) string { return h.ID }
func memberKey(m domain.TeamMember) string { return m.ID }
func reviewKey(r domain.Review) string { return r.ID }
func commentKey(c domain.Comment) string { return c.ID }
func workflowKey(w domain.Workflow) string { return w.ID }
func executionKey(x domain.WorkflowExecution) string { return x.ID }
func knowledgeKey(k domain.KnowledgeItem) string { return k.ID }
func consultationKey(c domain.Consultation) string { return c.ID }
func notificationKey(n domain.Notification) string { return n.ID }

func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
