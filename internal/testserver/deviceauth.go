package testserver

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/pkg/errors"
)

type pendingChallenge struct {
	subject       string
	deviceID      string
	mode          oauth2.TrustDeviceMode
	codeChallenge string
}

type registration struct {
	id        string
	subject   string
	deviceID  string
	mode      oauth2.TrustDeviceMode
	publicKey *rsa.PublicKey
	pinHash   string
}

func (s *Server) newChallenge(p pendingChallenge) (string, error) {
	challenge, err := cryptorand.UniqueID()
	if err != nil {
		return "", err
	}
	s.challenges[challenge] = p
	return challenge, nil
}

// DeviceInit starts a registration for the signed in user.
func (s *Server) DeviceInit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid form", err.Error())
			return
		}
		p := pendingChallenge{
			subject:       subject(r),
			deviceID:      r.PostForm.Get("device_id"),
			mode:          oauth2.TrustDeviceMode(r.PostForm.Get("mode")),
			codeChallenge: r.PostForm.Get("code_challenge"),
		}
		if p.deviceID == "" || p.codeChallenge == "" || (p.mode != oauth2.PinMode && p.mode != oauth2.BiometricMode) {
			writeProblem(w, http.StatusBadRequest, "Invalid request", "device_id, mode and code_challenge are required")
			return
		}

		s.lock.Lock()
		defer s.lock.Unlock()
		challenge, err := s.newChallenge(p)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Challenge", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
	}
}

// DeviceAuthorize issues a login challenge for a registered device.
func (s *Server) DeviceAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid form", err.Error())
			return
		}
		deviceID := r.PostForm.Get("device_id")
		mode := oauth2.TrustDeviceMode(r.PostForm.Get("mode"))

		s.lock.Lock()
		defer s.lock.Unlock()
		reg, err := s.registrationFor(r.PostForm.Get("registration_id"), deviceID, mode)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid registration", err.Error())
			return
		}
		challenge, err := s.newChallenge(pendingChallenge{
			subject:       reg.subject,
			deviceID:      deviceID,
			mode:          mode,
			codeChallenge: r.PostForm.Get("code_challenge"),
		})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Challenge", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
	}
}

// DeviceComplete verifies the signed challenge and the one time password.
func (s *Server) DeviceComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid form", err.Error())
			return
		}
		form := r.PostForm

		s.lock.Lock()
		defer s.lock.Unlock()

		p, err := s.consumeChallenge(form.Get("code"), form.Get("code_verifier"), form.Get("device_id"))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid challenge", err.Error())
			return
		}
		if p.subject != subject(r) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "challenge belongs to another user")
			return
		}
		if form.Get("otp") != s.otp {
			writeProblem(w, http.StatusBadRequest, "Invalid otp", "the one time password is not valid")
			return
		}

		reg := registration{id: uuid.NewString(), subject: p.subject, deviceID: p.deviceID, mode: p.mode}
		switch p.mode {
		case oauth2.BiometricMode:
			if reg.publicKey, err = parsePublicKey(form.Get("public_key")); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid public key", err.Error())
				return
			}
			if err := verifySignature(reg.publicKey, form.Get("code"), form.Get("code_signature")); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid signature", err.Error())
				return
			}
		case oauth2.PinMode:
			if reg.pinHash = form.Get("pin"); reg.pinHash == "" {
				writeProblem(w, http.StatusBadRequest, "Invalid pin", "pin is required")
				return
			}
		}
		s.registrations[reg.id] = reg
		s.markDeviceLocked(reg.subject, reg.deviceID, reg.mode)
		writeJSON(w, http.StatusOK, map[string]string{"registrationId": reg.id})
	}
}

// authenticateDevice checks a device_authentication grant. The caller holds s.lock.
func (s *Server) authenticateDevice(r *http.Request) (string, error) {
	form := r.PostForm
	mode := oauth2.TrustDeviceMode(form.Get("mode"))
	deviceID := form.Get("device_id")
	reg, err := s.registrationFor(form.Get("registration_id"), deviceID, mode)
	if err != nil {
		return "", err
	}

	switch mode {
	case oauth2.PinMode:
		if form.Get("pin") != reg.pinHash {
			return "", errors.New("invalid pin")
		}
	case oauth2.BiometricMode:
		if _, err := s.consumeChallenge(form.Get("code"), form.Get("code_verifier"), deviceID); err != nil {
			return "", err
		}
		if err := verifySignature(reg.publicKey, form.Get("code"), form.Get("code_signature")); err != nil {
			return "", err
		}
	}
	return reg.subject, nil
}

// registrationFor finds the device's registration for mode. registrationID
// must name one of the device's registrations, not necessarily this mode's.
func (s *Server) registrationFor(registrationID, deviceID string, mode oauth2.TrustDeviceMode) (registration, error) {
	known, ok := s.registrations[registrationID]
	if !ok || known.deviceID != deviceID {
		return registration{}, errors.New("unknown registration")
	}
	for _, reg := range s.registrations {
		if reg.deviceID == deviceID && reg.mode == mode {
			return reg, nil
		}
	}
	return registration{}, errors.Errorf("device has no %s registration", mode)
}

func (s *Server) consumeChallenge(code, verifier, deviceID string) (pendingChallenge, error) {
	p, ok := s.challenges[code]
	if !ok {
		return pendingChallenge{}, errors.New("unknown challenge")
	}
	delete(s.challenges, code)
	if p.deviceID != deviceID {
		return pendingChallenge{}, errors.New("challenge issued to another device")
	}
	if cryptorand.S256(verifier) != p.codeChallenge {
		return pendingChallenge{}, errors.New("code verifier mismatch")
	}
	return p, nil
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil || block.Type != "RSA PUBLIC KEY" {
		return nil, errors.New("public key must be an RSA PUBLIC KEY PEM block")
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

func verifySignature(key *rsa.PublicKey, message, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Wrap(err, "signature encoding")
	}
	digest := sha256.Sum256([]byte(message))
	return errors.Wrap(rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig), "signature")
}
