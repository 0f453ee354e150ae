package codec

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region client-struct
// LandmarkClient wraps the gRPC connection to the landmark detection service.
// The request is the encoded image as a BytesValue and the reply a Struct:
//
//	{"face_found": true, "brightness": 87.5, "landmarks": {"33": [x, y, z], ...},
//	 "pose": [pitch, yaw, roll]}
type LandmarkClient struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	timeout time.Duration
}
// #endregion client-struct

// #region constructor
// NewLandmarkClient creates a lazily connecting client for cfg.Addr.
func NewLandmarkClient(cfg ClientConfig, extra ...grpc.DialOption) (*LandmarkClient, error) {
	size := cfg.MaxMessageSizeMB * 1024 * 1024
	if size <= 0 {
		size = 16 * 1024 * 1024
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(size),
			grpc.MaxCallSendMsgSize(size),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", cfg.Addr, err)
	}
	return &LandmarkClient{conn: conn, cc: conn, timeout: cfg.Timeout}, nil
}

// NewLandmarkClientWithConn creates a client over an existing connection.
// Used for testing without a real network.
func NewLandmarkClientWithConn(cc grpc.ClientConnInterface, timeout time.Duration) *LandmarkClient {
	return &LandmarkClient{cc: cc, timeout: timeout}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection if this client owns it.
func (c *LandmarkClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region detect
// Detect sends one encoded image and decodes the detected landmarks.
func (c *LandmarkClient) Detect(ctx context.Context, image []byte) (Detection, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, DetectMethod, wrapperspb.Bytes(image), resp); err != nil {
		return Detection{}, fmt.Errorf("detect rpc: %w", err)
	}
	return decodeDetection(resp)
}

func decodeDetection(resp *structpb.Struct) (Detection, error) {
	fields := resp.GetFields()
	det := Detection{
		FaceFound:  fields["face_found"].GetBoolValue(),
		Brightness: fields["brightness"].GetNumberValue(),
	}
	if !det.FaceFound {
		return det, nil
	}

	marks := fields["landmarks"].GetStructValue()
	if marks == nil {
		return Detection{}, fmt.Errorf("face found without landmarks: %w", ErrMalformedResponse)
	}
	det.Landmarks = make(facemetrics.LandmarkSet, len(marks.GetFields()))
	for key, v := range marks.GetFields() {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return Detection{}, fmt.Errorf("landmark key %q: %w", key, ErrMalformedResponse)
		}
		coords := v.GetListValue().GetValues()
		if len(coords) < 2 {
			return Detection{}, fmt.Errorf("landmark %d has %d coordinates: %w", idx, len(coords), ErrMalformedResponse)
		}
		p := facemetrics.Point{X: coords[0].GetNumberValue(), Y: coords[1].GetNumberValue()}
		if len(coords) > 2 {
			p.Z = coords[2].GetNumberValue()
		}
		det.Landmarks[idx] = p
	}

	if pose := fields["pose"].GetListValue().GetValues(); len(pose) > 0 {
		if len(pose) != 3 {
			return Detection{}, fmt.Errorf("pose has %d angles: %w", len(pose), ErrMalformedResponse)
		}
		det.Pose = &headpose.Angles{
			Pitch: pose[0].GetNumberValue(),
			Yaw:   pose[1].GetNumberValue(),
			Roll:  pose[2].GetNumberValue(),
		}
	}
	return det, nil
}
// #endregion detect

// #region health
// Healthy reports whether the service answers the standard health check.
func (c *LandmarkClient) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.cc).Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}
// #endregion health

// #region encode
// EncodeDetection builds the reply Struct for a detection. Landmark services
// written in Go and test servers use it.
func EncodeDetection(det Detection) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"face_found": det.FaceFound,
		"brightness": det.Brightness,
	}
	if det.FaceFound {
		marks := make(map[string]interface{}, len(det.Landmarks))
		for idx, p := range det.Landmarks {
			marks[strconv.Itoa(idx)] = []interface{}{p.X, p.Y, p.Z}
		}
		fields["landmarks"] = marks
		if det.Pose != nil {
			fields["pose"] = []interface{}{det.Pose.Pitch, det.Pose.Yaw, det.Pose.Roll}
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode detection: %w", err)
	}
	return s, nil
}
// #endregion encode
