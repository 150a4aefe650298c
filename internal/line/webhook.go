// Package line adapts the LINE Messaging API SDK to the bot: webhook
// signature checks, event decoding, and the reply endpoint.
package line

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/soyeahso/linegpt/internal/domain"
)

// Parse decodes a verified webhook body.
func Parse(body []byte) (*webhook.CallbackRequest, error) {
	var cb webhook.CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decoding webhook: %w", err)
	}
	return &cb, nil
}

// ParseEvents decodes a verified webhook body and returns its text message
// events in delivery order.
func ParseEvents(body []byte) ([]domain.InboundEvent, error) {
	cb, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return TextEvents(cb), nil
}

// TextEvents returns the text message events of the delivery in order.
// Other event and message types are dropped.
func TextEvents(cb *webhook.CallbackRequest) []domain.InboundEvent {
	events := make([]domain.InboundEvent, 0, len(cb.Events))
	for _, raw := range cb.Events {
		ev, ok := asMessageEvent(raw)
		if !ok {
			continue
		}
		text, ok := asText(ev.Message)
		if !ok {
			continue
		}
		in := domain.InboundEvent{
			ID:         ev.WebhookEventId,
			Source:     toSource(ev.Source),
			Text:       text.Text,
			ReplyToken: ev.ReplyToken,
			Timestamp:  time.UnixMilli(ev.Timestamp),
		}
		if ev.DeliveryContext != nil {
			in.Redelivery = ev.DeliveryContext.IsRedelivery
		}
		events = append(events, in)
	}
	return events
}

func asMessageEvent(ev webhook.EventInterface) (webhook.MessageEvent, bool) {
	switch e := ev.(type) {
	case webhook.MessageEvent:
		return e, true
	case *webhook.MessageEvent:
		return *e, e != nil
	}
	return webhook.MessageEvent{}, false
}

func asText(msg webhook.MessageContentInterface) (webhook.TextMessageContent, bool) {
	switch m := msg.(type) {
	case webhook.TextMessageContent:
		return m, true
	case *webhook.TextMessageContent:
		return *m, m != nil
	}
	return webhook.TextMessageContent{}, false
}

// toSource maps the SDK source to the bot's source. Types the bot does not
// know become SourceUnknown.
func toSource(src webhook.SourceInterface) domain.Source {
	switch s := src.(type) {
	case webhook.UserSource:
		return domain.Source{Kind: domain.SourceUser, UserID: s.UserId}
	case *webhook.UserSource:
		return domain.Source{Kind: domain.SourceUser, UserID: s.UserId}
	case webhook.GroupSource:
		return domain.Source{Kind: domain.SourceGroup, GroupID: s.GroupId, UserID: s.UserId}
	case *webhook.GroupSource:
		return domain.Source{Kind: domain.SourceGroup, GroupID: s.GroupId, UserID: s.UserId}
	case webhook.RoomSource:
		return domain.Source{Kind: domain.SourceRoom, RoomID: s.RoomId, UserID: s.UserId}
	case *webhook.RoomSource:
		return domain.Source{Kind: domain.SourceRoom, RoomID: s.RoomId, UserID: s.UserId}
	}
	return domain.Source{Kind: domain.SourceUnknown}
}
