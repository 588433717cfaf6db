package testserver

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-identity-client/devices"
	"github.com/jrsteele09/go-identity-client/oauth2"
)

// AddDevice registers a device for the user with username.
func (s *Server) AddDevice(username string, d devices.DeviceInfo) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sub := s.users[username].id
	s.devices[sub] = append(s.devices[sub], d)
}

// Devices returns the user's devices as stored on the server.
func (s *Server) Devices(username string) []devices.DeviceInfo {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]devices.DeviceInfo(nil), s.devices[s.users[username].id]...)
}

func (s *Server) findDevice(sub, id string) int {
	for i, d := range s.devices[sub] {
		if d.DeviceID == id {
			return i
		}
	}
	return -1
}

func (s *Server) markDeviceLocked(sub, id string, mode oauth2.TrustDeviceMode) {
	i := s.findDevice(sub, id)
	if i < 0 {
		return
	}
	if mode == oauth2.BiometricMode {
		s.devices[sub][i].SupportsFingerprintLogin = true
	} else {
		s.devices[sub][i].SupportsPinLogin = true
	}
}

func (s *Server) ListDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		items := append([]devices.DeviceInfo{}, s.devices[subject(r)]...)
		writeJSON(w, http.StatusOK, devices.ResultSet[devices.DeviceInfo]{Count: len(items), Items: items})
	}
}

func (s *Server) GetDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		i := s.findDevice(sub, r.PathValue("id"))
		if i < 0 {
			writeProblem(w, http.StatusNotFound, "Not Found", "device not found")
			return
		}
		writeJSON(w, http.StatusOK, s.devices[sub][i])
	}
}

func (s *Server) CreateDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req devices.CreateDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid device", "deviceId is required")
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		if s.findDevice(sub, req.DeviceID) >= 0 {
			writeProblem(w, http.StatusConflict, "Conflict", "device already registered")
			return
		}
		now := s.nowFunc().UTC()
		s.devices[sub] = append(s.devices[sub], devices.DeviceInfo{
			DeviceID:               req.DeviceID,
			Name:                   req.Name,
			Platform:               req.Platform,
			ClientType:             req.ClientType,
			Model:                  req.Model,
			OSVersion:              req.OSVersion,
			Tags:                   req.Tags,
			Data:                   req.Data,
			CanActivateDeviceTrust: true,
			DateCreated:            &now,
		})
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) UpdateDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req devices.UpdateDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid device", err.Error())
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		i := s.findDevice(sub, r.PathValue("id"))
		if i < 0 {
			writeProblem(w, http.StatusNotFound, "Not Found", "device not found")
			return
		}
		d := &s.devices[sub][i]
		d.Name = req.Name
		d.Tags = req.Tags
		d.Model = req.Model
		d.OSVersion = req.OSVersion
		d.Data = req.Data
		if req.IsPushNotificationsEnabled != nil {
			d.IsPushNotificationsEnabled = *req.IsPushNotificationsEnabled
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) DeleteDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		i := s.findDevice(sub, r.PathValue("id"))
		if i < 0 {
			writeProblem(w, http.StatusNotFound, "Not Found", "device not found")
			return
		}
		s.devices[sub] = append(s.devices[sub][:i], s.devices[sub][i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) TrustDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SwapDeviceID string `json:"swapDeviceId"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
				return
			}
		}

		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		id := r.PathValue("id")
		i := s.findDevice(sub, id)
		if i < 0 {
			writeProblem(w, http.StatusNotFound, "Not Found", "device not found")
			return
		}

		trusted := 0
		for _, d := range s.devices[sub] {
			if d.IsTrusted && d.DeviceID != id && d.DeviceID != req.SwapDeviceID {
				trusted++
			}
		}
		if trusted >= s.maxTrusted {
			writeProblem(w, http.StatusBadRequest, "Device limit reached", "a trusted device must be swapped")
			return
		}
		if req.SwapDeviceID != "" {
			j := s.findDevice(sub, req.SwapDeviceID)
			if j < 0 {
				writeProblem(w, http.StatusNotFound, "Not Found", "swap device not found")
				return
			}
			s.devices[sub][j].IsTrusted = false
			s.devices[sub][j].TrustActivationDate = nil
		}
		now := s.nowFunc().UTC()
		s.devices[sub][i].IsTrusted = true
		s.devices[sub][i].TrustActivationDate = &now
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) UntrustDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		defer s.lock.Unlock()
		sub := subject(r)
		i := s.findDevice(sub, r.PathValue("id"))
		if i < 0 {
			writeProblem(w, http.StatusNotFound, "Not Found", "device not found")
			return
		}
		s.devices[sub][i].IsTrusted = false
		s.devices[sub][i].TrustActivationDate = nil
		w.WriteHeader(http.StatusNoContent)
	}
}
