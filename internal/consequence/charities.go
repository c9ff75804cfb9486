package consequence

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
)

//go:embed charities.yaml
var charitiesYAML []byte

type Charity struct {
	ID   string
	Name string
	// Destination is the payment-rail account that receives the transfer.
	Destination string
}

// Charities is the whitelist the monetary channel may pay.
type Charities struct {
	byID map[string]Charity
}

func NewCharities(list ...Charity) *Charities {
	c := &Charities{byID: map[string]Charity{}}
	for _, ch := range list {
		id := strings.TrimSpace(ch.ID)
		if id == "" {
			continue
		}
		c.byID[id] = ch
	}
	return c
}

// CharitiesFromEnv loads the embedded catalog. Entries without a configured
// destination are dropped so they fail the whitelist check.
func CharitiesFromEnv() (*Charities, error) {
	var doc struct {
		Charities []struct {
			ID             string `yaml:"id"`
			Name           string `yaml:"name"`
			DestinationEnv string `yaml:"destination_env"`
		} `yaml:"charities"`
	}
	if err := yaml.Unmarshal(charitiesYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse charity catalog: %w", err)
	}
	var list []Charity
	for _, c := range doc.Charities {
		dest := envutil.String(c.DestinationEnv, "")
		if dest == "" {
			continue
		}
		list = append(list, Charity{ID: c.ID, Name: c.Name, Destination: dest})
	}
	return NewCharities(list...), nil
}

func (c *Charities) Lookup(id string) (Charity, bool) {
	if c == nil {
		return Charity{}, false
	}
	ch, ok := c.byID[strings.TrimSpace(id)]
	if !ok || strings.TrimSpace(ch.Destination) == "" {
		return Charity{}, false
	}
	return ch, true
}

func (c *Charities) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}
