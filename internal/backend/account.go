package backend

import (
	"context"

	"waterz/internal/models"
)

const (
	endpointSignIn        = "signin"
	endpointSignUp        = "signup-customer"
	endpointGenerateOTP   = "generate-otp"
	endpointVerifyOTP     = "verify-otp"
	endpointLogout        = "logout"
	endpointProfile       = "me"
	endpointUpdateProfile = "profile-update"
	endpointQuery         = "query"
)

// SignIn exchanges credentials for a session token. It is always sent anonymously.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (*models.SignInResult, error) {
	var res models.SignInResult
	if err := c.doPost(ctx, Anonymous(), endpointSignIn, "/auth/signin", creds, &res); err != nil {
		return nil, err
	}
	if err := c.check(endpointSignIn, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SignUpResult, error) {
	var res models.SignUpResult
	if err := c.doPost(ctx, Anonymous(), endpointSignUp, "/auth/signup/customer", req, &res); err != nil {
		return nil, err
	}
	if err := c.check(endpointSignUp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GenerateOTP(ctx context.Context, req models.OTPRequest) (*models.Ack, error) {
	var ack models.Ack
	if err := c.doPost(ctx, Anonymous(), endpointGenerateOTP, "/auth/generate-otp", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) VerifyOTP(ctx context.Context, req models.OTPVerification) (*models.Ack, error) {
	var ack models.Ack
	if err := c.doPost(ctx, Anonymous(), endpointVerifyOTP, "/auth/verify-otp", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Logout ends the backend session of the token holder.
func (c *Client) Logout(ctx context.Context, auth AuthContext) error {
	return c.doPost(ctx, auth, endpointLogout, "/user/logout", struct{}{}, nil)
}

// Profile returns the signed-in customer; the backend wraps it as {"user": {...}}.
func (c *Client) Profile(ctx context.Context, auth AuthContext) (*models.User, error) {
	var wrap struct {
		User *models.User `json:"user"`
	}
	if err := c.doGet(ctx, auth, endpointProfile, "/customer/me", &wrap); err != nil {
		return nil, err
	}
	if wrap.User == nil {
		return nil, c.missing(endpointProfile, "user")
	}
	if err := c.check(endpointProfile, wrap.User); err != nil {
		return nil, err
	}
	return wrap.User, nil
}

// UpdateProfile returns the updated user when the backend echoes it, nil otherwise.
func (c *Client) UpdateProfile(ctx context.Context, auth AuthContext, upd models.ProfileUpdate) (*models.User, error) {
	var wrap struct {
		User *models.User `json:"user"`
	}
	if err := c.doPost(ctx, auth, endpointUpdateProfile, "/customer/profile/update", upd, &wrap); err != nil {
		return nil, err
	}
	if wrap.User == nil {
		return nil, nil
	}
	if err := c.check(endpointUpdateProfile, wrap.User); err != nil {
		return nil, err
	}
	return wrap.User, nil
}

// SendQuery forwards a contact-form message.
func (c *Client) SendQuery(ctx context.Context, auth AuthContext, q models.ContactQuery) (*models.Ack, error) {
	var ack models.Ack
	if err := c.doPost(ctx, auth, endpointQuery, "/query", q, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}
