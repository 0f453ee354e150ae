package codec

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
)

// DetectMethod is the full RPC name served by the landmark service.
const DetectMethod = "/focusguard.LandmarkService/Detect"

// ErrMalformedResponse is returned when the service reply cannot be decoded.
var ErrMalformedResponse = errors.New("malformed landmark response")

// #region types
// Detection is the landmark service's answer for one image.
type Detection struct {
	FaceFound  bool
	Landmarks  facemetrics.LandmarkSet
	Brightness float64
	Pose       *headpose.Angles // set when the service also solved head pose
}

// ClientConfig controls the connection to the landmark service.
type ClientConfig struct {
	Addr             string
	Timeout          time.Duration // per Detect call
	MaxMessageSizeMB int
}

func DefaultClientConfig(addr string) ClientConfig {
	return ClientConfig{
		Addr:             addr,
		Timeout:          5 * time.Second,
		MaxMessageSizeMB: 16,
	}
}
// #endregion types
