package models

import "encoding/json"

const RoleCustomer = "customer"

// User is a backend account. The profile endpoint sends "_id", sign-in sends "id".
type User struct {
	ID         string `json:"_id" validate:"required"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var raw struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == "" {
		u.ID = raw.AltID
	}
	return nil
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=7,max=15"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"`
}

// SignInResult carries the session token the client keeps for later calls.
type SignInResult struct {
	Message string `json:"message"`
	Token   string `json:"token" validate:"required"`
	User    *User  `json:"user" validate:"required"`
}

// SignUpResult holds the pending-verification token that VerifyOTP expects back.
type SignUpResult struct {
	Message string `json:"message"`
	Token   string `json:"token" validate:"required"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPVerification struct {
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=8"`
	Token string `json:"token" validate:"required"`
	Role  string `json:"role"`
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,min=7,max=15"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

// ContactQuery is a message from the site's contact form.
type ContactQuery struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message" validate:"required,max=2000"`
}

// Ack is a plain backend acknowledgement.
type Ack struct {
	Message string `json:"message"`
}
