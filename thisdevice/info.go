package thisdevice

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-identity-client/oauth2"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/host"
)

// Info describes this device to the identity server.
type Info struct {
	Name      string
	Model     string
	OSVersion string
	Platform  oauth2.DevicePlatform
}

// InfoProvider reports the current device description.
type InfoProvider interface {
	Info(ctx context.Context) (Info, error)
}

// StaticInfo is an InfoProvider that always returns the same Info.
type StaticInfo Info

func (s StaticInfo) Info(context.Context) (Info, error) {
	return Info(s), nil
}

// HostInfoProvider reads the description from the host operating system.
type HostInfoProvider struct{}

var _ InfoProvider = HostInfoProvider{}

func (HostInfoProvider) Info(ctx context.Context) (Info, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, errors.Wrap(err, "[HostInfoProvider.Info] host info")
	}
	return Info{
		Name:      hi.Hostname,
		Model:     strings.TrimSpace(hi.Platform + " " + hi.KernelArch),
		OSVersion: hi.PlatformVersion,
		Platform:  PlatformFromOS(hi.OS),
	}, nil
}

// PlatformFromOS maps a GOOS style name onto the server's platform values.
func PlatformFromOS(goos string) oauth2.DevicePlatform {
	switch strings.ToLower(goos) {
	case "android":
		return oauth2.PlatformAndroid
	case "ios":
		return oauth2.PlatformIOS
	case "windows":
		return oauth2.PlatformWindows
	case "darwin":
		return oauth2.PlatformMacOS
	case "linux":
		return oauth2.PlatformLinux
	default:
		return oauth2.PlatformNone
	}
}
