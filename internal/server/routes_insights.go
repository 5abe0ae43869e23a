package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"collabhub/internal/domain"
	"collabhub/internal/engine"
)

func registerInsights(api huma.API, e engine.Engine) {
	huma.Register(api, operation("get-metrics", http.MethodGet, "/hubs/{hub_id}/metrics", "Hub metrics", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[domain.Metrics], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := e.Metrics(ctx, input.HubID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(m), nil
		})

	huma.Register(api, operation("get-analytics", http.MethodGet, "/hubs/{hub_id}/analytics", "Hub analytics", false),
		func(ctx context.Context, input *struct {
			HubID  string `path:"hub_id"`
			Window string `query:"window" enum:"24h,7d,30d"`
		}) (*envelopeOutput[domain.Analytics], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			a, err := e.Analytics(ctx, input.HubID, input.Window)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(a), nil
		})

	huma.Register(api, operation("get-activity", http.MethodGet, "/hubs/{hub_id}/activity", "Team activity", false),
		func(ctx context.Context, input *struct {
			HubID string `path:"hub_id"`
			Limit int    `query:"limit" minimum:"0" maximum:"500"`
		}) (*envelopeOutput[[]domain.ActivityEntry], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			entries, err := e.TeamActivity(ctx, input.HubID, input.Limit)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(entries)), nil
		})

	huma.Register(api, operation("export-hub", http.MethodGet, "/hubs/{hub_id}/export", "Export hub data", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[domain.ExportBundle], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			b, err := e.ExportHub(ctx, input.HubID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			b.Members = nonNilSlice(b.Members)
			b.Reviews = nonNilSlice(b.Reviews)
			b.Comments = nonNilSlice(b.Comments)
			b.Workflows = nonNilSlice(b.Workflows)
			b.Knowledge = nonNilSlice(b.Knowledge)
			b.Consultations = nonNilSlice(b.Consultations)
			return ok(b), nil
		})
}

type notificationPath struct {
	NotificationID string `path:"notification_id"`
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-notifications", http.MethodGet, "/notifications", "List notifications", false),
		func(ctx context.Context, input *struct {
			Unread bool `query:"unread"`
		}) (*envelopeOutput[[]domain.Notification], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			items, err := e.ListNotifications(ctx, actorID, input.Unread)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(items)), nil
		})

	huma.Register(api, operation("mark-all-notifications-read", http.MethodPost, "/notifications/read-all", "Mark all notifications read", false),
		func(ctx context.Context, _ *struct{}) (*envelopeOutput[MarkAllReadResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			n, err := e.MarkAllNotificationsRead(ctx, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(MarkAllReadResponse{Updated: n}), nil
		})

	huma.Register(api, operation("mark-notification-read", http.MethodPost, "/notifications/{notification_id}/read", "Mark notification read", false),
		func(ctx context.Context, input *notificationPath) (*envelopeOutput[domain.Notification], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			n, err := e.MarkNotificationRead(ctx, input.NotificationID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(n), nil
		})

	huma.Register(api, operation("delete-notification", http.MethodDelete, "/notifications/{notification_id}", "Delete notification", false),
		func(ctx context.Context, input *notificationPath) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.DeleteNotification(ctx, input.NotificationID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.NotificationID), nil
		})
}
