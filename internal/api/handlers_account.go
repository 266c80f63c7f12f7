package api

import (
	"net/http"

	"waterz/internal/models"
)

const (
	signInFailedMessage = "Failed to sign in. Please try again."
	signUpFailedMessage = "Failed to sign up. Please try again."
	otpFailedMessage    = "Failed to verify OTP. Please try again."
	queryFailedMessage  = "Failed to send query. Please try again."
)

// --- auth pass-through ---

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decodeBody(w, r, &creds, false) {
		return
	}
	res, err := s.account.SignIn(r.Context(), creds)
	if err != nil {
		s.writeServiceError(w, r, err, signInFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	res, err := s.account.SignUp(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, signUpFailedMessage)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleGenerateOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	ack, err := s.account.GenerateOTP(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, otpFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *HTTPServer) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPVerification
	if !decodeBody(w, r, &req, false) {
		return
	}
	ack, err := s.account.VerifyOTP(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, otpFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.account.Logout(r.Context(), authFrom(r)); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- account ---

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.account.Profile(r.Context(), authFrom(r))
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if !decodeBody(w, r, &upd, false) {
		return
	}
	user, err := s.account.UpdateProfile(r.Context(), authFrom(r), upd)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleSendQuery(w http.ResponseWriter, r *http.Request) {
	var q models.ContactQuery
	if !decodeBody(w, r, &q, false) {
		return
	}
	ack, err := s.account.SendQuery(r.Context(), authFrom(r), q)
	if err != nil {
		s.writeServiceError(w, r, err, queryFailedMessage)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}
