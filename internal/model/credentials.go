package model

// LoginRequest is the body of POST <auth-base>/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST <auth-base>/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the success body of both auth endpoints.
// Only Token is required; the user block is optional.
type TokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// User is the account summary some backends return next to the token.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
