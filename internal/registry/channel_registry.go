package registry

import (
	"fmt"
	"strings"

	"github.com/sarthwa8/digital-twin-dashboard/internal/constants"
	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/utils"
)

// ChannelResolver maps wire topics back to logical channels.
type ChannelResolver interface {
	Resolve(transportID string) (models.Channel, bool)
	All() []models.Channel
}

// ChannelRegistry is the immutable channel table built once at startup.
type ChannelRegistry struct {
	ordered []models.Channel
	byTopic map[string]models.Channel
	byName  map[constants.ChannelName]models.Channel
}

var _ ChannelResolver = (*ChannelRegistry)(nil)

// DefaultTopics returns the standard topic layout under the given namespace.
func DefaultTopics(namespace string) map[constants.ChannelName]string {
	namespace = strings.TrimSuffix(namespace, "/")
	topics := make(map[constants.ChannelName]string, len(constants.DefaultTopicSuffixes))
	for name, suffix := range constants.DefaultTopicSuffixes {
		topics[name] = namespace + "/" + suffix
	}
	return topics
}

// NewChannelRegistry builds the registry from a name → topic table. Every known
// channel needs exactly one topic, topics must be distinct and must not contain
// MQTT wildcards.
func NewChannelRegistry(topics map[constants.ChannelName]string) (*ChannelRegistry, error) {
	r := &ChannelRegistry{
		ordered: make([]models.Channel, 0, len(constants.ChannelOrder)),
		byTopic: make(map[string]models.Channel, len(constants.ChannelOrder)),
		byName:  make(map[constants.ChannelName]models.Channel, len(constants.ChannelOrder)),
	}

	known := utils.SliceToSet(constants.ChannelOrder)
	for name := range topics {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
	}

	for _, name := range constants.ChannelOrder {
		topic := topics[name]
		if topic == "" {
			return nil, fmt.Errorf("no topic configured for channel %q", name)
		}
		if strings.ContainsAny(topic, "+#") {
			return nil, fmt.Errorf("topic %q for channel %q must not contain wildcards", topic, name)
		}
		if other, dup := r.byTopic[topic]; dup {
			return nil, fmt.Errorf("topic %q is used by both %q and %q", topic, other.Name, name)
		}

		ch := models.Channel{
			Name:        name,
			TransportID: topic,
			Kind:        constants.ChannelKinds[name],
		}
		r.ordered = append(r.ordered, ch)
		r.byTopic[topic] = ch
		r.byName[name] = ch
	}

	return r, nil
}

// Resolve finds the channel published on transportID.
func (r *ChannelRegistry) Resolve(transportID string) (models.Channel, bool) {
	ch, ok := r.byTopic[transportID]
	return ch, ok
}

// Lookup finds a channel by its logical name.
func (r *ChannelRegistry) Lookup(name constants.ChannelName) (models.Channel, bool) {
	ch, ok := r.byName[name]
	return ch, ok
}

// All returns every channel in subscription order.
func (r *ChannelRegistry) All() []models.Channel {
	out := make([]models.Channel, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Topics returns every channel topic in subscription order.
func (r *ChannelRegistry) Topics() []string {
	topics := make([]string, 0, len(r.ordered))
	for _, ch := range r.ordered {
		topics = append(topics, ch.TransportID)
	}
	return topics
}
