package notify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/example/petcare-platform/services/engagement/internal/deeplink"
	"github.com/example/petcare-platform/services/engagement/internal/profile"
)

// Dispatcher routes intents to the grouped or individual delivery
// path. It never returns an error to the authoring flow.
type Dispatcher struct {
	sink  Sink
	route string
	log   *zap.Logger
}

func NewDispatcher(sink Sink, postRoute string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sink: sink, route: postRoute, log: log}
}

// Dispatch delivers every intent for one authoring action. body is the
// authored text used for previews; actor is the acting user's display
// profile.
func (d *Dispatcher) Dispatch(intents []Intent, actor profile.Profile, body string) {
	for _, in := range intents {
		if in.RecipientID == "" || in.RecipientID == actor.ID {
			// Self-actions never notify.
			continue
		}
		var err error
		if in.Kind.Grouped() {
			err = d.sink.Grouped(d.groupedEvent(in, actor, body))
		} else {
			err = d.sink.Individual(d.individualEvent(in, actor, body))
		}
		if err != nil {
			d.log.Warn("notification dispatch failed",
				zap.String("recipient", in.RecipientID),
				zap.String("kind", string(in.Kind)),
				zap.Error(err))
		}
	}
}

// PostLiked fires the grouped "like" path for a post reaction.
func (d *Dispatcher) PostLiked(ownerID, postID string, actor profile.Profile, preview string) {
	d.Dispatch([]Intent{{RecipientID: ownerID, Kind: KindLike, PostID: postID}}, actor, preview)
}

func (d *Dispatcher) groupedEvent(in Intent, actor profile.Profile, body string) GroupedEvent {
	link := deeplink.Build(d.route, in.PostID, in.CommentID, "")
	if in.Kind == KindLike {
		link = deeplink.Build(d.route, in.PostID, "", deeplink.ActionLike)
	}
	return GroupedEvent{
		RecipientID:   in.RecipientID,
		ActorID:       actor.ID,
		Kind:          in.Kind,
		PostID:        in.PostID,
		ActorName:     displayName(actor),
		Preview:       Preview(body),
		DeepLink:      link,
		FallbackTitle: fallbackTitle(in.Kind),
	}
}

func (d *Dispatcher) individualEvent(in Intent, actor profile.Profile, body string) IndividualEvent {
	name := displayName(actor)
	var title, text string
	switch in.Kind {
	case KindReply:
		title = "New reply"
		text = fmt.Sprintf("%s replied to your comment: %s", name, Preview(body))
	case KindMention:
		title = "You were mentioned"
		text = fmt.Sprintf("%s mentioned you: %s", name, Preview(body))
	case KindCommentLike:
		title = "Comment liked"
		text = fmt.Sprintf("%s liked your comment", name)
	default:
		title = "New activity"
		text = fmt.Sprintf("%s interacted with your post", name)
	}
	return IndividualEvent{
		RecipientID: in.RecipientID,
		ActorID:     actor.ID,
		Kind:        in.Kind,
		Title:       title,
		Body:        text,
		Data: IndividualData{
			PostID:   in.PostID,
			DeepLink: deeplink.Build(d.route, in.PostID, in.CommentID, ""),
		},
	}
}

func displayName(p profile.Profile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Username != "" {
		return p.Username
	}
	return profile.PlaceholderName
}

func fallbackTitle(k Kind) string {
	if k == KindLike {
		return "New like"
	}
	return "New comment"
}
