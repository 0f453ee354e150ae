package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/codec"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/engine"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/facemetrics"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/gate"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/headpose"
	"github.com/danielpatrickdp/focusguard/go-engine/internal/session"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// #region input

// frameLine is one NDJSON record on stdin. A line with Command set controls
// the user's session instead of carrying a frame.
type frameLine struct {
	User       string                  `json:"user"`
	Command    string                  `json:"command,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
	Brightness *float64                `json:"brightness,omitempty"`
	Landmarks  facemetrics.LandmarkSet `json:"landmarks,omitempty"`
	Pose       *headpose.Angles        `json:"pose,omitempty"`
	Image      []byte                  `json:"image,omitempty"` // base64 JPEG/PNG
}

// resultLine is written to stdout for every processed frame when enabled.
type resultLine struct {
	User   string        `json:"user"`
	Result engine.Result `json:"result"`
}

// #endregion input

// #region source

type frameSource struct {
	registry  *session.Registry
	landmarks *codec.LandmarkClient // nil when no landmark service is configured
	log       logrus.FieldLogger
	out       io.Writer // nil disables result output
	maxLine   int
	now       func() time.Time
}

// run consumes NDJSON lines until EOF or ctx is done. Bad lines are logged
// and skipped.
func (s *frameSource) run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), s.maxLine)

	enc := json.NewEncoder(io.Discard)
	if s.out != nil {
		enc = json.NewEncoder(s.out)
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line frameLine
		if err := json.Unmarshal(raw, &line); err != nil {
			s.log.WithError(err).Warn("skipping malformed input line")
			continue
		}
		res, err := s.handle(ctx, line)
		if err != nil {
			s.log.WithError(err).WithField("user", line.User).Warn("frame rejected")
			continue
		}
		if res != nil && s.out != nil {
			if err := enc.Encode(resultLine{User: line.User, Result: *res}); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
	}
	return scanner.Err()
}

// handle applies a command or processes a frame. Commands return a nil result.
func (s *frameSource) handle(ctx context.Context, line frameLine) (*engine.Result, error) {
	if line.User == "" {
		return nil, errors.New("input line without user")
	}
	at := line.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	switch line.Command {
	case "":
	case "start":
		_, err := s.registry.Start(line.User, at)
		return nil, err
	case "stop":
		_, err := s.registry.Stop(line.User, at)
		return nil, err
	default:
		return nil, fmt.Errorf("unknown command %q", line.Command)
	}

	frame, err := s.toFrame(ctx, line, at)
	if err != nil {
		return nil, err
	}
	res, err := s.registry.Process(line.User, frame)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// toFrame resolves landmarks and brightness. An explicit brightness or pose on
// the line wins over values derived from the image. A line with neither a
// brightness nor an image is invalid, since the dark-frame gate would read
// it as a black frame.
func (s *frameSource) toFrame(ctx context.Context, line frameLine, at time.Time) (engine.Frame, error) {
	if line.Brightness == nil && len(line.Image) == 0 {
		return engine.Frame{}, fmt.Errorf("frame without brightness or image: %w", facemetrics.ErrInvalidInput)
	}
	frame := engine.Frame{Landmarks: line.Landmarks, Pose: line.Pose, Timestamp: at}

	if len(line.Image) > 0 {
		if s.landmarks != nil {
			det, err := s.landmarks.Detect(ctx, line.Image)
			if err != nil {
				return engine.Frame{}, fmt.Errorf("detect landmarks: %w", err)
			}
			if det.FaceFound {
				frame.Landmarks = det.Landmarks
				if frame.Pose == nil {
					frame.Pose = det.Pose
				}
			}
			frame.Brightness = det.Brightness
		}
		if frame.Brightness == 0 {
			lum, err := imageLuminance(line.Image)
			if err != nil {
				return engine.Frame{}, err
			}
			frame.Brightness = lum
		}
	}
	if line.Brightness != nil {
		frame.Brightness = *line.Brightness
	}
	return frame, nil
}

func imageLuminance(data []byte) (float64, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return gate.MeanLuminance(img), nil
}

// #endregion source
