package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Payload is the request body sent to the estimate endpoint.
type Payload struct {
	Plan Plan `json:"plan" yaml:"plan"`
}

// Plan is the minimal Terraform plan the endpoint accepts.
type Plan struct {
	ResourceChanges []ResourceChange `json:"resource_changes" yaml:"resource_changes"`
}

// ResourceChange describes one planned infrastructure change.
type ResourceChange struct {
	Address string         `json:"address" yaml:"address"`
	Type    string         `json:"type" yaml:"type"`
	Change  Change         `json:"change" yaml:"change"`
	After   map[string]any `json:"after" yaml:"after"`
}

// Change lists the actions planned for a resource.
type Change struct {
	Actions []string `json:"actions" yaml:"actions"`
}

// DefaultResourceChange is the record sent when no payload file is configured.
func DefaultResourceChange() ResourceChange {
	return ResourceChange{
		Address: "aws_instance.test",
		Type:    "aws_instance",
		Change:  Change{Actions: []string{"create"}},
		After:   map[string]any{"instance_type": "t2.micro"},
	}
}

// NewPayload wraps rc in a payload carrying exactly one resource change. The
// record is copied so concurrent iterations never share mutable state.
func NewPayload(rc ResourceChange) Payload {
	return Payload{Plan: Plan{ResourceChanges: []ResourceChange{rc.clone()}}}
}

func (rc ResourceChange) clone() ResourceChange {
	out := rc
	out.Change.Actions = append([]string(nil), rc.Change.Actions...)
	if rc.After != nil {
		out.After = make(map[string]any, len(rc.After))
		for k, v := range rc.After {
			out.After[k] = v
		}
	}
	return out
}

// Validate reports whether rc can be sent as the payload's only record.
func (rc ResourceChange) Validate() error {
	if strings.TrimSpace(rc.Address) == "" {
		return errors.New("resource change address must not be empty")
	}
	if strings.TrimSpace(rc.Type) == "" {
		return errors.New("resource change type must not be empty")
	}
	for i, action := range rc.Change.Actions {
		if strings.TrimSpace(action) == "" {
			return fmt.Errorf("resource change action %d must not be empty", i)
		}
	}
	return nil
}

// LoadResourceChange reads the resource change to send from a YAML or JSON
// file. The file holds either a bare resource change or a full payload with
// exactly one entry under plan.resource_changes.
func LoadResourceChange(path string) (ResourceChange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ResourceChange{}, fmt.Errorf("read payload file: %w", err)
	}
	rc, err := parseResourceChange(data)
	if err != nil {
		return ResourceChange{}, fmt.Errorf("payload file %s: %w", path, err)
	}
	return rc, nil
}

func parseResourceChange(data []byte) (ResourceChange, error) {
	var doc struct {
		ResourceChange `yaml:",inline"`
		Plan           *Plan `yaml:"plan"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ResourceChange{}, fmt.Errorf("decode: %w", err)
	}

	rc := doc.ResourceChange
	if doc.Plan != nil {
		if n := len(doc.Plan.ResourceChanges); n != 1 {
			return ResourceChange{}, fmt.Errorf("plan must contain exactly one resource change, got %d", n)
		}
		rc = doc.Plan.ResourceChanges[0]
	}
	if err := rc.Validate(); err != nil {
		return ResourceChange{}, err
	}
	return rc, nil
}
