package realtime

import (
	"fmt"
	"strings"
)

type TopicKind string

const (
	TopicOrder TopicKind = "order"
	TopicStaff TopicKind = "staff"
)

// Topic is a routing key. Staff is a singleton, so its Key is empty.
type Topic struct {
	Kind TopicKind `json:"kind"`
	Key  string    `json:"key,omitempty"`
}

var StaffTopic = Topic{Kind: TopicStaff}

func OrderTopic(orderID string) Topic {
	return Topic{Kind: TopicOrder, Key: orderID}
}

func (t Topic) String() string {
	if t.Key == "" {
		return string(t.Kind)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Key)
}

// ParseTopic is the inverse of Topic.String.
func ParseTopic(s string) Topic {
	kind, key, _ := strings.Cut(s, ":")
	return Topic{Kind: TopicKind(kind), Key: key}
}
