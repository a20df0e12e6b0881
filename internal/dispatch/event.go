package dispatch

import "fmt"

// Kind discriminates the domain events the dispatcher knows how to turn into
// notifications. One tagged union with per-kind receiver resolution, rather
// than one handler type per event.
type Kind int

const (
	// KindFeedLiked: someone liked a feed; notify the feed author.
	KindFeedLiked Kind = iota
	// KindFeedCommented: someone commented on a feed; notify the feed author.
	KindFeedCommented
	// KindFollowCreated: someone followed a user; notify the followee.
	KindFollowCreated
	// KindDirectMessage: a DM arrived; notify the other participant.
	KindDirectMessage
	// KindAttributeChanged: a clothing attribute definition changed; notify
	// every user except the actor who changed it.
	KindAttributeChanged
	// KindAnnouncement: operator announcement to all receivers.
	KindAnnouncement
)

func (k Kind) String() string {
	switch k {
	case KindFeedLiked:
		return "feed_liked"
	case KindFeedCommented:
		return "feed_commented"
	case KindFollowCreated:
		return "follow_created"
	case KindDirectMessage:
		return "direct_message"
	case KindAttributeChanged:
		return "attribute_changed"
	case KindAnnouncement:
		return "announcement"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a domain event raised by a collaborator inside a transaction. The
// fields used depend on Kind; TargetID carries the feed author, followee, or
// DM partner for the directed kinds.
type Event struct {
	Kind      Kind
	ActorID   string
	ActorName string
	TargetID  string
	Detail    string
}

// title and content map an event to the user-facing notification text.
func (e Event) title() string {
	switch e.Kind {
	case KindFeedLiked:
		return fmt.Sprintf("%s liked your feed", e.ActorName)
	case KindFeedCommented:
		return fmt.Sprintf("%s commented on your feed", e.ActorName)
	case KindFollowCreated:
		return fmt.Sprintf("%s started following you", e.ActorName)
	case KindDirectMessage:
		return fmt.Sprintf("New message from %s", e.ActorName)
	case KindAttributeChanged:
		return "Clothing attributes updated"
	case KindAnnouncement:
		return "Announcement"
	default:
		return e.Kind.String()
	}
}

func (e Event) content() string {
	return e.Detail
}

func (e Event) level() string {
	if e.Kind == KindAnnouncement {
		return "important"
	}
	return "info"
}
