package auth

// Effect is the authorization verdict embedded in a policy statement.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// Decision is the wire-level authorizer result consumed by the gateway:
// a principal, an IAM-style policy document with a single statement, and an
// optional string-only context map.
type Decision struct {
	PrincipalID    string            `json:"principalId"`
	PolicyDocument PolicyDocument    `json:"policyDocument"`
	Context        map[string]string `json:"context,omitempty"`
}

// PolicyDocument is the IAM-style policy carried by a Decision.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement grants or denies invocation of the requested resource.
type Statement struct {
	Action   string `json:"Action"`
	Effect   Effect `json:"Effect"`
	Resource string `json:"Resource"`
}

// Effect returns the verdict of the decision's single statement.
func (d Decision) Effect() Effect {
	if len(d.PolicyDocument.Statement) == 0 {
		return EffectDeny
	}
	return d.PolicyDocument.Statement[0].Effect
}

// NewDecision builds the authorizer result. A Deny decision never carries a
// context, regardless of what is passed. An Allow decision requires an
// identity; without one the decision degrades to Deny rather than granting
// access with no propagated tenant context. Pure function.
func NewDecision(principalID string, effect Effect, resourceArn string, id *Identity) Decision {
	if effect == EffectAllow && id == nil {
		effect = EffectDeny
	}
	d := Decision{
		PrincipalID: principalID,
		PolicyDocument: PolicyDocument{
			Version: "2012-10-17",
			Statement: []Statement{{
				Action:   "execute-api:Invoke",
				Effect:   effect,
				Resource: resourceArn,
			}},
		},
	}
	if effect == EffectAllow {
		d.Context = id.Map()
	}
	return d
}
