package stub

import "fmt"

const hoursPerMonth = 730

// hourlyPrices are on-demand USD prices for us-east-1, keyed by resource type
// and then by the sizing attribute that selects the price.
var hourlyPrices = map[string]struct {
	attribute string
	prices    map[string]float64
}{
	"aws_instance": {
		attribute: "instance_type",
		prices: map[string]float64{
			"t2.micro":  0.0116,
			"t2.small":  0.023,
			"t3.micro":  0.0104,
			"t3.small":  0.0208,
			"t3.medium": 0.0416,
			"m5.large":  0.096,
			"c5.large":  0.085,
		},
	},
	"aws_db_instance": {
		attribute: "instance_class",
		prices: map[string]float64{
			"db.t3.micro":  0.017,
			"db.t3.small":  0.034,
			"db.t3.medium": 0.068,
			"db.m5.large":  0.171,
		},
	},
	"aws_nat_gateway": {
		prices: map[string]float64{"": 0.045},
	},
}

// regionMultipliers scale the us-east-1 price for other regions.
var regionMultipliers = map[string]float64{
	"us-east-1":    1.0,
	"us-east-2":    1.0,
	"us-west-2":    1.0,
	"eu-west-1":    1.1,
	"eu-central-1": 1.15,
	"ap-south-1":   1.05,
}

// monthlyCost prices one resource change. Creations add cost, deletions
// remove it and anything else is cost neutral.
func monthlyCost(rc resourceChange, region string) (float64, string, error) {
	entry, ok := hourlyPrices[rc.Type]
	if !ok {
		return 0, "", fmt.Errorf("unsupported resource type %q", rc.Type)
	}
	key := ""
	if entry.attribute != "" {
		v, _ := rc.After[entry.attribute].(string)
		key = v
	}
	hourly, ok := entry.prices[key]
	if !ok {
		return 0, "", fmt.Errorf("no price for %s %s=%q", rc.Type, entry.attribute, key)
	}
	mult, ok := regionMultipliers[region]
	if !ok {
		return 0, "", fmt.Errorf("unsupported region %q", region)
	}
	hourly *= mult

	sign := 0.0
	switch {
	case hasAction(rc.Change.Actions, "create") && !hasAction(rc.Change.Actions, "delete"):
		sign = 1
	case hasAction(rc.Change.Actions, "delete") && !hasAction(rc.Change.Actions, "create"):
		sign = -1
	}
	breakdown := fmt.Sprintf("$%.4f/hr x %d hrs", hourly, hoursPerMonth)
	return sign * hourly * hoursPerMonth, breakdown, nil
}

func hasAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
