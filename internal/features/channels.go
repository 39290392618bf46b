package features

import "strings"

// Channel is an advertising channel known to the forecast model.
type Channel struct {
	Name        string `mapstructure:"name" yaml:"name"`
	DisplayName string `mapstructure:"displayName" yaml:"displayName"`
}

// DefaultChannels is the channel set the model artifact was trained with, in one-hot order.
var DefaultChannels = []Channel{
	{Name: "Naver", DisplayName: "Naver"},
	{Name: "Meta", DisplayName: "Instagram"},
	{Name: "Google", DisplayName: "Google/YouTube"},
	{Name: "Karrot", DisplayName: "Karrot Market"},
}

// Catalog resolves request channel identifiers to canonical channels.
type Catalog struct {
	byKey map[string]Channel
	order []Channel
}

// NewCatalog builds a catalog. Display names default to the channel name.
func NewCatalog(channels []Channel) *Catalog {
	c := &Catalog{byKey: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		if strings.TrimSpace(ch.DisplayName) == "" {
			ch.DisplayName = ch.Name
		}
		c.byKey[normalizeKey(ch.Name)] = ch
		c.order = append(c.order, ch)
	}
	return c
}

// Lookup finds a channel by case-insensitive name.
func (c *Catalog) Lookup(name string) (Channel, bool) {
	ch, ok := c.byKey[normalizeKey(name)]
	return ch, ok
}

// Channels returns the catalog channels in declaration order.
func (c *Catalog) Channels() []Channel {
	return append([]Channel(nil), c.order...)
}

// Names returns the canonical channel names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	for i, ch := range c.order {
		names[i] = ch.Name
	}
	return names
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
