package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims is the JWT claim set accepted by the gateway.
type ActorClaims struct {
	jwt.RegisteredClaims             // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string      `json:"email"`
	Role                 string      `json:"role"`
	Permissions          []string    `json:"permissions"`
	Admin                bool        `json:"admin"`
	AppMetadata          AppMetadata `json:"app_metadata"`
}

// AppMetadata carries permissions issued by identity providers that nest them.
type AppMetadata struct {
	Permissions []string `json:"permissions"`
	Admin       bool     `json:"admin"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *ActorClaims) GetUserID() string {
	return c.Subject
}

// Actor converts the claims into the request identity.
func (c *ActorClaims) Actor() *Actor {
	perms := make([]string, 0, len(c.Permissions)+len(c.AppMetadata.Permissions))
	perms = append(perms, c.Permissions...)
	perms = append(perms, c.AppMetadata.Permissions...)
	return &Actor{
		ID:          c.Subject,
		Permissions: perms,
		Admin:       c.Admin || c.AppMetadata.Admin,
	}
}
